// Package namecodec sanitizes between filesystem names and the restricted
// character set allowed in manifest XML element tags.
package namecodec

import "strings"

// FixName turns a manifest tag into the filename it represents: "_E" becomes
// ".", then "__" becomes "_"; a leading underscore before a digit (added so
// the tag would not start with a digit) is stripped.
func FixName(tag string) string {
	name := strings.ReplaceAll(tag, "_E", ".")
	name = strings.ReplaceAll(name, "__", "_")
	if len(name) >= 2 && name[0] == '_' && isDigit(name[1]) {
		name = name[1:]
	}
	return name
}

// Sanitize turns a filename into the manifest tag that represents it. The
// substitutions run in the reverse order of FixName so that
// Sanitize(FixName(tag)) == tag for every tag the binary XML codec emits.
func Sanitize(name string) string {
	tag := strings.ReplaceAll(name, "_", "__")
	tag = strings.ReplaceAll(tag, ".", "_E")
	if len(tag) >= 1 && isDigit(tag[0]) {
		tag = "_" + tag
	}
	return tag
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
