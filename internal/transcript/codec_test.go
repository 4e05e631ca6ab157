package transcript

import "testing"

func TestDecodePlainTextUnchanged(t *testing.T) {
	in := "no escapes here"
	if got := Decode(in); got != in {
		t.Fatalf("Decode: want=%q got=%q", in, got)
	}
}

func TestDecodeUnicodeRun(t *testing.T) {
	if got := Decode(`\u0041\u0042`); got != "AB" {
		t.Fatalf("Decode: want=%q got=%q", "AB", got)
	}
}

func TestDecodeSurrogatePair(t *testing.T) {
	if got := Decode(`\ud83d\ude00`); got != "\U0001F600" {
		t.Fatalf("Decode: want=%q got=%q", "\U0001F600", got)
	}
}

func TestDecodeUnpairedSurrogateReturnsInput(t *testing.T) {
	cases := []string{
		`\ud800`,
		`\ud800 trailing`,
		`\udc00\ud800`,
		`lead \ud83d\u0041`,
	}
	for _, in := range cases {
		if got := Decode(in); got != in {
			t.Fatalf("Decode(%q): want input back, got=%q", in, got)
		}
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	if got := Decode("&quot;a &amp; b&quot; &lt;c&gt;"); got != `"a & b" <c>` {
		t.Fatalf("Decode: want=%q got=%q", `"a & b" <c>`, got)
	}
}

func TestDecodeSimpleEscapes(t *testing.T) {
	if got := Decode(`say \"hi\"\nnext\tcol`); got != "say \"hi\"\nnext\tcol" {
		t.Fatalf("Decode: got=%q", got)
	}
	if got := Decode(`c:\\path`); got != `c:\path` {
		t.Fatalf("Decode: want=%q got=%q", `c:\path`, got)
	}
}

func TestDecodeIdempotentOnDecodedText(t *testing.T) {
	once := Decode(`\u0048ello \u0057orld`)
	if got := Decode(once); got != once {
		t.Fatalf("Decode not idempotent: first=%q second=%q", once, got)
	}
}
