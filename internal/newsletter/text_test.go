package newsletter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageText(t *testing.T) {
	html := `<html>
<head>
  <title> Article title </title>
  <style>body { color: red }</style>
  <script>var x = "hidden";</script>
</head>
<body>
  <h1>Headline</h1>
  <!-- a comment -->
  <p>First   paragraph with <a href="#">a link</a>.</p>
  <noscript>Enable JavaScript</noscript>
  <div>

  </div>
  <p>Second paragraph</p>
</body>
</html>`

	got, err := PageText(html)
	require.NoError(t, err)
	assert.Equal(t, "Article title\nHeadline\nFirst   paragraph with\na link\n.\nSecond paragraph", got)
}

func TestPageText_Empty(t *testing.T) {
	got, err := PageText("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
	assert.Equal(t, "", Truncate("", 3))
}
