package importer

import (
	"net/url"
	"path"
	"strings"
)

// videoPlatform 影片平台的網域規則
type videoPlatform struct {
	name  string
	hosts []string
	// paths 不為空時，只有這些路徑前綴視為影片
	paths []string
}

var videoPlatforms = []videoPlatform{
	{name: "youtube", hosts: []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}},
	{name: "tiktok", hosts: []string{"tiktok.com"}},
	{name: "instagram", hosts: []string{"instagram.com"}, paths: []string{"/reel/", "/reels/", "/tv/", "/p/"}},
	{name: "facebook", hosts: []string{"fb.watch"}},
	{name: "facebook", hosts: []string{"facebook.com"}, paths: []string{"/watch", "/reel/", "/videos/", "/share/v/", "/share/r/"}},
	{name: "vimeo", hosts: []string{"vimeo.com"}},
	{name: "dailymotion", hosts: []string{"dailymotion.com", "dai.ly"}},
	{name: "twitch", hosts: []string{"twitch.tv"}},
	{name: "pinterest", hosts: []string{"pin.it"}},
}

var videoExtensions = []string{".mp4", ".mov", ".m4v", ".webm", ".mkv", ".avi", ".mpeg", ".mpg", ".3gp"}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// detectVideoPlatform 判斷連結是否來自影片平台，回傳平台名稱
func detectVideoPlatform(u *url.URL) (string, bool) {
	host := strings.ToLower(u.Hostname())
	p := strings.ToLower(u.Path)
	for _, vp := range videoPlatforms {
		for _, h := range vp.hosts {
			if !hostMatches(host, h) {
				continue
			}
			if len(vp.paths) == 0 {
				return vp.name, true
			}
			for _, prefix := range vp.paths {
				if strings.HasPrefix(p, prefix) {
					return vp.name, true
				}
			}
		}
	}
	ext := path.Ext(p)
	for _, ve := range videoExtensions {
		if ext == ve {
			return "direct", true
		}
	}
	return "", false
}

var trackingParams = map[string]struct{}{
	"si":             {},
	"feature":        {},
	"igsh":           {},
	"igshid":         {},
	"fbclid":         {},
	"gclid":          {},
	"is_from_webapp": {},
}

// CanonicalizeVideoURL 將短網址、shorts、行動版網域轉成標準觀看網址並移除追蹤參數
func CanonicalizeVideoURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())

	if id := youtubeID(host, u); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}

	if hostMatches(host, "instagram.com") {
		u.Host = "www.instagram.com"
		if strings.HasPrefix(u.Path, "/reels/") {
			u.Path = "/reel/" + strings.TrimPrefix(u.Path, "/reels/")
		}
	}
	if host == "m.facebook.com" || host == "mobile.facebook.com" {
		u.Host = "www.facebook.com"
	}

	q := u.Query()
	for key := range q {
		if _, ok := trackingParams[strings.ToLower(key)]; ok || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String()
}

func youtubeID(host string, u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case host == "youtu.be":
		if len(segments) > 0 && segments[0] != "" {
			return segments[0]
		}
	case hostMatches(host, "youtube.com") || hostMatches(host, "youtube-nocookie.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "shorts", "live", "embed", "v":
				return segments[1]
			}
		}
	}
	return ""
}
