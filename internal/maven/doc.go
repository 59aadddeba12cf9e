// Package maven parses repository-relative Maven paths into coordinates.
// The parse is purely structural: the trailing segments are assigned to
// artifactId/version/file and everything before them forms the dotted groupId.
// No character or semantic-version validation happens here.
package maven
