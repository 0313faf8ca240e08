package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech Talks Weekly</title>
    <item>
      <title>Episode 1: The AI Boom</title>
      <description><![CDATA[<p>We discuss <b>machine learning</b> trends.</p>]]></description>
      <guid>ep-001</guid>
      <link>https://example.com/ep1</link>
      <pubDate>Mon, 04 Mar 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title></title>
      <description>No guid on this one.</description>
      <link>https://example.com/ep2</link>
    </item>
  </channel>
</rss>`

func TestParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	feed, err := NewParser().Parse(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Tech Talks Weekly", feed.Title)
	require.Len(t, feed.Items, 2)

	first := feed.Items[0]
	assert.Equal(t, "Episode 1: The AI Boom", first.Title)
	assert.Equal(t, "We discuss machine learning trends.", first.Description)
	assert.Equal(t, "ep-001", first.GUID)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 2024, first.PublishedAt.Year())

	second := feed.Items[1]
	assert.Equal(t, "Untitled Episode", second.Title)
	assert.Equal(t, "https://example.com/ep2", second.GUID, "guid falls back to link")
	assert.Nil(t, second.PublishedAt)
}

func TestParseUntitledFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title></title></channel></rss>`))
	}))
	defer srv.Close()

	feed, err := NewParser().Parse(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Feed", feed.Title)
	assert.Empty(t, feed.Items)
}

func TestParseErrorWrapsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewParser().Parse(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), srv.URL)
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text collapses whitespace", "  hello \n world  ", "hello world"},
		{"strips tags", "<p>Hello <strong>there</strong></p>", "Hello there"},
		{"nested markup", "<div><ul><li>one</li><li>two</li></ul></div>", "one two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDescription(tt.in))
		})
	}
}

func TestValidateURL(t *testing.T) {
	assert.True(t, ValidateURL("https://example.com/feed.xml"))
	assert.True(t, ValidateURL("http://example.com/rss"))
	assert.False(t, ValidateURL("ftp://example.com/feed"))
	assert.False(t, ValidateURL("not a url"))
	assert.False(t, ValidateURL(""))
}
