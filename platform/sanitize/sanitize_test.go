package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := map[string]string{
		"  <b>Hello</b>   world ":               "Hello world",
		"&lt;script&gt;alert(1)&lt;/script&gt;": "alert(1)",
		"<p></p>":                               "",
		"line one\nline   two":                  "line one\nline two",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Fatalf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLineFlattensNewlines(t *testing.T) {
	if got := Line("Need\r\nhelp\nwith <i>taxes</i>"); got != "Need help with taxes" {
		t.Fatalf("unexpected line: %q", got)
	}
}
