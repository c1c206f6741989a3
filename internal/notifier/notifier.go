// Package notifier delivers judged articles to the reader.
package notifier

import (
	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

// Partition splits recommendations into those to read and those to skip,
// keeping their original order.
func Partition(recs []model.Recommendation) (read, skip []model.Recommendation) {
	read = lo.Filter(recs, func(r model.Recommendation, _ int) bool { return r.Judgment.Decision })
	skip = lo.Filter(recs, func(r model.Recommendation, _ int) bool { return !r.Judgment.Decision })
	return read, skip
}

// MinutesSaved sums the reading time of the given recommendations.
func MinutesSaved(skip []model.Recommendation) int {
	return lo.SumBy(skip, func(r model.Recommendation) int { return r.Article.ReadingTime })
}
