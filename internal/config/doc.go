// Package config loads a project's kiln.hcl into a typed Project: the root
// descriptor to resolve plus the cache, resolver and repository settings.
//
// Loading happens in two steps. The HCL is decoded into File, whose schema
// rejects any block or attribute it does not declare. File.Convert then
// validates the values and converts them into the types the rest of the
// program works with. Environment variables, optionally read from a .env
// file next to the configuration, override the file.
package config
