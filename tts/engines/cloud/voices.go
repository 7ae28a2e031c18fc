package cloud

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
)

type voicesResponse struct {
	Voices []struct {
		LanguageCodes          []string `json:"languageCodes"`
		Name                   string   `json:"name"`
		SSMLGender             string   `json:"ssmlGender"`
		NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
	} `json:"voices"`
}

// Voices lists the remote voices, optionally filtered by language code.
func (c *Client) Voices(ctx context.Context, languageCode string) ([]tts.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := "/voices"
	if languageCode != "" {
		path += "?languageCode=" + url.QueryEscape(languageCode)
	}

	var resp voicesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		voices = append(voices, tts.Voice{
			Name:     v.Name,
			Language: lang,
			Gender:   strings.ToLower(v.SSMLGender),
			Quality:  string(TierOf(v.Name)),
			IsGoogle: true,
		})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices, nil
}
