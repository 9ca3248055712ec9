package comment

import (
	"math"
	"strconv"
	"strings"

	"github.com/mx-space/moderation/internal/models"
)

// parseRating returns nil for a blank rating. Integral decimals such as
// "4.0" are accepted; fractional ratings are not.
func parseRating(raw RatingInput) (*int, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, false
		}
		if f < models.MinRating || f > models.MaxRating {
			return nil, false
		}
		v = int(f)
	}
	if v < models.MinRating || v > models.MaxRating {
		return nil, false
	}
	return &v, true
}

// buildComment validates dto and returns an unsaved, unapproved comment. The
// challenge answer is not validated here: a wrong or missing answer only
// means the comment waits for a moderator.
func buildComment(pageID string, dto *CreateCommentDTO, prov Provenance) (*models.CommentModel, error) {
	verr := &ValidationError{}

	pageID = strings.TrimSpace(pageID)
	author := strings.TrimSpace(dto.Author)
	email := strings.TrimSpace(dto.AuthorEmail)
	content := strings.TrimSpace(dto.Content)

	if pageID == "" {
		verr.add("page", "can't be blank")
	}
	if author == "" {
		verr.add("author", "can't be blank")
	}
	if email == "" {
		verr.add("author_email", "can't be blank")
	}
	if content == "" {
		verr.add("content", "can't be blank")
	}
	rating, ok := parseRating(dto.Rating)
	if !ok {
		verr.add("rating", "must be between 0 and 5")
	}
	if !verr.empty() {
		return nil, verr
	}

	return &models.CommentModel{
		PageID:      pageID,
		Author:      author,
		AuthorEmail: email,
		AuthorURL:   strings.TrimSpace(dto.AuthorURL),
		Content:     content,
		FilterID:    strings.TrimSpace(dto.FilterID),
		Rating:      rating,
		AuthorIP:    prov.IP,
		UserAgent:   prov.UserAgent,
		Referrer:    prov.Referrer,
	}, nil
}
