package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicy = bluemonday.UGCPolicy()

	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// htmlText sanitizes untrusted portal markup and flattens it to markdown
// so the line-oriented field parser can work on it.
func htmlText(data []byte) (string, error) {
	clean := htmlPolicy.SanitizeBytes(data)
	md, err := mdConverter.ConvertString(string(clean))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
