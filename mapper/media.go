package mapper

import (
	"net/url"
	"sort"
	"strings"

	"catalog-service/models"
)

// urlResolver turns relative media paths into absolute URLs under one origin.
type urlResolver struct {
	origin *url.URL
}

func newURLResolver(origin string) (urlResolver, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return urlResolver{}, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return urlResolver{}, err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return urlResolver{origin: u}, nil
}

// Resolve returns raw unchanged when it is already absolute or cannot be parsed.
func (r urlResolver) Resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || r.origin == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	return r.origin.ResolveReference(u).String()
}

// mediaSet collects media by id, first occurrence wins.
type mediaSet struct {
	resolve urlResolver
	order   []string
	items   map[string]models.Media
}

func newMediaSet(resolve urlResolver) *mediaSet {
	return &mediaSet{resolve: resolve, items: make(map[string]models.Media)}
}

// add registers raw and returns its id, or "" when it carries no URL at all.
func (s *mediaSet) add(raw models.RawMedia) string {
	var variants []models.MediaVariant
	for _, v := range []models.MediaVariant{
		{Purpose: models.PurposeOriginal, URL: raw.URL},
		{Purpose: models.PurposeThumbnail, URL: raw.ThumbnailURL},
		{Purpose: models.PurposeFallback, URL: raw.FallbackURL},
	} {
		if u := s.resolve.Resolve(v.URL); u != "" {
			variants = append(variants, models.MediaVariant{Purpose: v.Purpose, URL: u})
		}
	}
	if len(variants) == 0 {
		return ""
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = variants[0].URL
	}
	if _, ok := s.items[id]; ok {
		return id
	}

	mediaType, _ := MediaTypeOf(raw.Type)
	s.items[id] = models.Media{
		ID:        id,
		Type:      mediaType,
		AltText:   raw.AltText,
		SortOrder: raw.SortOrder,
		Variants:  variants,
	}
	s.order = append(s.order, id)
	return id
}

func (s *mediaSet) addAll(raws []models.RawMedia) []string {
	ids := make([]string, 0, len(raws))
	for _, r := range raws {
		if id := s.add(r); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *mediaSet) has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// keep filters ids down to media present in the set.
func (s *mediaSet) keep(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.has(id) {
			out = append(out, id)
		}
	}
	return out
}

// list returns the media in sort order, insertion order breaking ties.
func (s *mediaSet) list() []models.Media {
	out := make([]models.Media, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}
