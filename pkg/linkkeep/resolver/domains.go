package resolver

import (
	"net/url"
	"strings"
)

// knownDomains maps well-known hosts to their local-language brand names.
// Used when the preview fetch fails so the entry still shows something
// better than a bare hostname.
var knownDomains = map[string]string{
	"naver.com":     "네이버",
	"google.com":    "구글",
	"youtube.com":   "유튜브",
	"youtu.be":      "유튜브",
	"instagram.com": "인스타그램",
	"facebook.com":  "페이스북",
	"twitter.com":   "트위터",
	"x.com":         "트위터",
	"kakao.com":     "카카오",
	"daum.net":      "다음",
	"coupang.com":   "쿠팡",
	"github.com":    "깃허브",
	"netflix.com":   "넷플릭스",
	"wikipedia.org": "위키백과",
}

// TitleForURL synthesizes a display title for a URL without any network
// access: the known-domain display name, else the title-cased first label of
// the domain, else the raw URL string when no host can be parsed.
func TitleForURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return displayNameForHost(u.Hostname())
}

func displayNameForHost(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")

	// Match the registered domain: walk suffixes so m.naver.com still hits
	// the naver.com entry.
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels)-1; i++ {
		if name, ok := knownDomains[strings.Join(labels[i:], ".")]; ok {
			return name
		}
	}

	first := labels[0]
	if first == "" {
		return host
	}
	return strings.ToUpper(first[:1]) + first[1:]
}
