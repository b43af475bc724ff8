package resolver

import "testing"

func TestTitleForURLKnownDomain(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://naver.com/news/1", "네이버"},
		{"https://www.google.com/search?q=go", "구글"},
		{"https://m.youtube.com/watch?v=abc", "유튜브"},
		{"https://ko.wikipedia.org/wiki/Go", "위키백과"},
	}
	for _, tc := range cases {
		if got := TitleForURL(tc.url); got != tc.want {
			t.Errorf("TitleForURL(%s) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestTitleForURLUnknownDomainTitleCased(t *testing.T) {
	if got := TitleForURL("https://example.com/page"); got != "Example" {
		t.Errorf("Expected title-cased first label 'Example', got %s", got)
	}
	if got := TitleForURL("https://www.blog.somesite.io/post"); got != "Blog" {
		t.Errorf("Expected 'Blog', got %s", got)
	}
}

func TestTitleForURLNoHost(t *testing.T) {
	if got := TitleForURL("not a url at all"); got != "not a url at all" {
		t.Errorf("Expected raw string back, got %s", got)
	}
	if got := TitleForURL("::::"); got != "::::" {
		t.Errorf("Expected raw string back, got %s", got)
	}
}
