// Package coordinate models a reference to a single repository artifact
// (group, artifact, version, classifier, type) and the textual grammar used to
// declare one:
//
//	[groupId:]artifactId:version[:classifier[:type]] [@ext] [optional] [-exclusion]*
//
// It also implements the bracketed path pattern language used to derive file
// names and repository-relative paths from a coordinate. A pattern is a mix of
// literal text, placeholders such as [artifactId], and optional groups written
// in parentheses, e.g. (-[classifier]). A group is emitted only when every
// placeholder inside it has a non-empty value; the parentheses never appear in
// the output.
package coordinate
