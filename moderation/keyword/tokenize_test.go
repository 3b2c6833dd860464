package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, World!", out: []string{"hello", "world"}},
		{text: "  multiple   spaces here ", out: []string{"multiple", "spaces", "here"}},
		{text: "CAFÉ naïve", out: []string{"cafe", "naive"}},
		{text: "don't stop", out: []string{"don", "t", "stop"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeText(fix.text))
	}
}

func TestTokenizeIdentifier(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"handle", "example", "com"}, TokenizeIdentifier("handle.example.com"))
	assert.Equal([]string{"some", "user"}, TokenizeIdentifier("some-user"))
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("helloworld", Slugify("Hello, World!"))
	assert.Equal("déjàvu", Slugify("Déjà Vu!"))
}

func TestExtractTextURLs(t *testing.T) {
	assert := assert.New(t)

	urls := ExtractTextURLs("see https://example.com/page and bit.ly/abc too")
	assert.Len(urls, 2)
	assert.Contains(urls, "https://example.com/page")
	assert.Contains(urls, "bit.ly/abc")

	assert.Empty(ExtractTextURLs("no links here at all"))
}

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	h1 := HashOfString("same content")
	h2 := HashOfString("same content")
	h3 := HashOfString("different content")
	assert.Equal(h1, h2)
	assert.NotEqual(h1, h3)
	assert.Len(h1, 16)
}
