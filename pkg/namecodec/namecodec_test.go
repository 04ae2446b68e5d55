package namecodec

import "testing"

func TestFixName(t *testing.T) {
	cases := []struct{ tag, name string }{
		{"_1file_Epng", "1file.png"},
		{"a__b_Ec", "a_b.c"},
		{"imgfs", "imgfs"},
		{"_E", "."},
	}
	for _, c := range cases {
		t.Run(c.tag, func(t *testing.T) {
			if got := FixName(c.tag); got != c.name {
				t.Errorf("FixName(%q) = %q, want %q", c.tag, got, c.name)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct{ name, tag string }{
		{"1file.png", "_1file_Epng"},
		{"a_b.c", "a__b_Ec"},
		{"imgfs", "imgfs"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Sanitize(c.name); got != c.tag {
				t.Errorf("Sanitize(%q) = %q, want %q", c.name, got, c.tag)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	// "_info_" and "_super_" are reserved manifest markers handled outside
	// NameCodec entirely (see manifest.populateFolder); they are never
	// produced by Sanitize of a real filename, so the round-trip law does
	// not apply to them. Every tag here is one FixName/Sanitize actually
	// produce for a real name.
	tags := []string{"_1file_Epng", "a__b_Ec", "imgfs", "_E", "tex", "__a__b__"}
	for _, tag := range tags {
		t.Run(tag, func(t *testing.T) {
			got := Sanitize(FixName(tag))
			if got != tag {
				t.Errorf("Sanitize(FixName(%q)) = %q, want %q", tag, got, tag)
			}
		})
	}
}
