package chunker

import "testing"

func TestPlainText(t *testing.T) {
	md := "# Launch day\n\n" +
		"The team shipped **version two** of the\napp. See [notes](https://x.io).\n\n" +
		"```\nrm -rf /\n```\n\n" +
		"- faster startup\n- smaller binary\n\n" +
		"![diagram](d.png)\n"

	got := Normalize(PlainText(md))
	want := "Launch day. The team shipped version two of the app. See notes. faster startup. smaller binary"
	if got != want {
		t.Errorf("PlainText flattened to\n %q\nwant\n %q", got, want)
	}
}

func TestPlainTextEmpty(t *testing.T) {
	if got := PlainText(""); got != "" {
		t.Errorf("PlainText(\"\") = %q", got)
	}
}
