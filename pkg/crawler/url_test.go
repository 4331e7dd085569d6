package crawler

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/Path", "https://example.com/Path"},
		{"HTTPS://example.com", "https://example.com/"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com:443/a", "https://example.com/a"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"https://example.com/a?b=1", "https://example.com/a?b=1"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if err != nil {
			t.Errorf("NormalizeURL(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeURL_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"not a url",
		"/relative/path",
		"ftp://example.com/file",
		"mailto:someone@example.com",
		"javascript:void(0)",
	} {
		if got, err := NormalizeURL(in); err == nil {
			t.Errorf("NormalizeURL(%q) = %q, want error", in, got)
		}
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	once, err := NormalizeURL("https://Example.com/a/b/#frag")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := NormalizeURL(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("normalization not idempotent: %q then %q", once, twice)
	}
}

func TestSameSite(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"https://example.com/a", "https://example.com/b", true},
		{"https://www.example.com/", "https://blog.example.com/", true},
		{"https://example.com/", "https://example.org/", false},
		{"https://example.co.uk/", "https://other.co.uk/", false},
		{"https://shop.example.co.uk/", "https://www.example.co.uk/", true},
		{"http://127.0.0.1:8080/a", "http://127.0.0.1:9090/b", true},
		{"http://127.0.0.1/", "http://127.0.0.2/", false},
	}

	for _, tt := range tests {
		if got := SameSite(tt.a, tt.b); got != tt.want {
			t.Errorf("SameSite(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCrawlable(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/page", true},
		{"https://example.com/page.html", true},
		{"https://example.com/style.css", false},
		{"https://example.com/app.js", false},
		{"https://example.com/photo.JPG", false},
		{"https://example.com/doc.pdf", false},
		{"https://example.com/archive.zip", false},
	}

	for _, tt := range tests {
		if got := Crawlable(tt.in); got != tt.want {
			t.Errorf("Crawlable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDomain(t *testing.T) {
	if got := Domain("https://Example.com:8443/path"); got != "example.com" {
		t.Errorf("Domain = %q", got)
	}
	if got := Domain("::bad::"); got != "" {
		t.Errorf("Domain of invalid URL = %q", got)
	}
}
