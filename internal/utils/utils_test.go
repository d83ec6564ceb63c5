package utils

import (
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_Expiry(t *testing.T) {
	c, err := NewTTLCache[int](4, time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Purge(t *testing.T) {
	c, err := NewTTLCache[string](4, time.Minute)
	require.NoError(t, err)
	c.Set("a", "x")
	c.Set("b", "y")
	c.Purge()
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestPasswordHash(t *testing.T) {
	h, err := HashPassword("Secreto123", 4)
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("Secreto123", h))
	assert.False(t, CheckPasswordHash("secreto123", h))
}

func TestGenerateTempPassword(t *testing.T) {
	for i := 0; i < 50; i++ {
		p, err := GenerateTempPassword(10)
		require.NoError(t, err)
		assert.Len(t, p, 10)
		assert.True(t, strings.IndexFunc(p, unicode.IsUpper) >= 0, p)
		assert.True(t, strings.IndexFunc(p, unicode.IsDigit) >= 0, p)
	}
}

func TestHashToken(t *testing.T) {
	raw, err := RandomHex(32)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Len(t, HashToken(raw), 64)
	assert.Equal(t, HashToken(raw), HashToken(raw))
	assert.NotEqual(t, raw, HashToken(raw))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Ana", SanitizeText("  <b>Ana</b> "))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
	assert.Equal(t, "ana@eco.cl", NormalizeEmail(" Ana@Eco.CL "))
}

func TestRenderMarkdownAndStyle(t *testing.T) {
	html := RenderMarkdown("# Hola\n\n[Entrar](/login) <script>x()</script>")
	assert.Contains(t, html, "<h1")
	assert.NotContains(t, html, "<script>")

	styled := StyleEmailHTML(html, "https://eco.example.com/")
	assert.Contains(t, styled, `href="https://eco.example.com/login"`)
	assert.Contains(t, styled, `style="color:#166534`)
}

func TestParseUintAndClamp(t *testing.T) {
	v, ok := ParseUint("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), v)
	_, ok = ParseUint("0")
	assert.False(t, ok)
	_, ok = ParseUint("-3")
	assert.False(t, ok)

	assert.Equal(t, 1, ClampInt(-5, 1, 100))
	assert.Equal(t, 100, ClampInt(500, 1, 100))
	assert.Equal(t, 10, ClampInt(10, 1, 100))
}
