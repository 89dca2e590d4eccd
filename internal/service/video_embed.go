package service

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// videoTimePattern matches YouTube offsets such as t=1h2m3s.
var videoTimePattern = regexp.MustCompile(`(?i)(\d+)(h|m|s)`)

type videoEmbed struct {
	Platform string
	Source   string
	EmbedURL string
}

// videoEmbedHTML is the "video" template helper: it turns a YouTube or
// Bilibili link stored in a block into a player iframe. Anything else
// renders as nothing.
func videoEmbedHTML(value interface{}) template.HTML {
	embed, ok := parseVideoURL(stringValue(value))
	if !ok {
		return ""
	}
	return template.HTML(fmt.Sprintf(
		`<div class="video-embed" data-video-platform="%s" data-video-source="%s">`+
			`<iframe src="%s" title="%s" loading="lazy" allowfullscreen frameborder="0" referrerpolicy="strict-origin-when-cross-origin"></iframe></div>`,
		html.EscapeString(embed.Platform),
		html.EscapeString(embed.Source),
		html.EscapeString(embed.EmbedURL),
		html.EscapeString(videoTitle(embed.Platform)),
	))
}

func parseVideoURL(raw string) (videoEmbed, bool) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "<>")
	if trimmed == "" {
		return videoEmbed{}, false
	}
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return videoEmbed{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return videoEmbed{}, false
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtu.be" || isHostOrSubdomain(host, "youtube.com"):
		return youtubeEmbed(u, trimmed)
	case isHostOrSubdomain(host, "bilibili.com"):
		return bilibiliEmbed(u, trimmed)
	}
	return videoEmbed{}, false
}

func youtubeEmbed(u *url.URL, source string) (videoEmbed, bool) {
	path := strings.Trim(u.Path, "/")
	var id string
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		id = path
	} else if path == "watch" {
		id = u.Query().Get("v")
	} else {
		for _, prefix := range []string{"shorts/", "embed/", "live/"} {
			if strings.HasPrefix(path, prefix) {
				id = strings.TrimPrefix(path, prefix)
				break
			}
		}
	}
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return videoEmbed{}, false
	}

	params := url.Values{}
	params.Set("rel", "0")
	params.Set("playsinline", "1")
	start := u.Query().Get("start")
	if start == "" {
		start = u.Query().Get("t")
	}
	if seconds := parseVideoOffset(start); seconds > 0 {
		params.Set("start", strconv.Itoa(seconds))
	}

	return videoEmbed{
		Platform: "youtube",
		Source:   source,
		EmbedURL: "https://www.youtube.com/embed/" + url.PathEscape(id) + "?" + params.Encode(),
	}, true
}

func bilibiliEmbed(u *url.URL, source string) (videoEmbed, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "video" || segments[1] == "" {
		return videoEmbed{}, false
	}

	params := url.Values{}
	id := segments[1]
	switch lower := strings.ToLower(id); {
	case strings.HasPrefix(lower, "bv"):
		params.Set("bvid", id)
	case strings.HasPrefix(lower, "av"):
		params.Set("aid", strings.TrimPrefix(lower, "av"))
	default:
		return videoEmbed{}, false
	}
	page := 1
	if p, err := strconv.Atoi(u.Query().Get("p")); err == nil && p > 0 {
		page = p
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("autoplay", "0")

	return videoEmbed{
		Platform: "bilibili",
		Source:   source,
		EmbedURL: "https://player.bilibili.com/player.html?" + params.Encode(),
	}, true
}

// parseVideoOffset accepts plain seconds or 1h2m3s.
func parseVideoOffset(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return seconds
		}
		return 0
	}

	total := 0
	for _, match := range videoTimePattern.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		switch strings.ToLower(match[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		default:
			total += n
		}
	}
	return total
}

func videoTitle(platform string) string {
	switch platform {
	case "youtube":
		return "YouTube video player"
	case "bilibili":
		return "Bilibili video player"
	default:
		return "Video player"
	}
}

func isHostOrSubdomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
