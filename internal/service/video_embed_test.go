package service

import (
	"strings"
	"testing"
)

func TestVideoEmbedHTML(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "watch", input: "https://www.youtube.com/watch?v=abc123&t=1m5s", want: `src="https://www.youtube.com/embed/abc123?playsinline=1&amp;rel=0&amp;start=65"`},
		{name: "short link", input: "youtu.be/xyz", want: `src="https://www.youtube.com/embed/xyz?playsinline=1&amp;rel=0"`},
		{name: "bilibili", input: "https://www.bilibili.com/video/BV1xx411c7mD?p=2", want: `src="https://player.bilibili.com/player.html?autoplay=0&amp;bvid=BV1xx411c7mD&amp;page=2"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(videoEmbedHTML(tc.input))
			if !strings.Contains(got, tc.want) {
				t.Fatalf("expected %s in %s", tc.want, got)
			}
		})
	}
}

func TestVideoEmbedHTMLRejectsOtherHosts(t *testing.T) {
	for _, input := range []interface{}{"", "https://notyoutube.com/watch?v=abc", "javascript:alert(1)", "https://www.bilibili.com/read/cv1", 42} {
		if got := videoEmbedHTML(input); got != "" {
			t.Fatalf("expected no embed for %v, got %s", input, got)
		}
	}
}

func TestVideoTemplateHelper(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.services.Render.execute(`{{ video .page_part.url.content }}`, map[string]interface{}{
		"url": map[string]interface{}{"content": "https://youtu.be/abc"},
	})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !strings.Contains(out, `<iframe src="https://www.youtube.com/embed/abc?`) {
		t.Fatalf("expected iframe, got %s", out)
	}
}
