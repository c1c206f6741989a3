// Package model defines the data structures used in the newsSieve application: raw feed entries, the articles built from them during a run, and the relevance judgments attached to those articles.
package model

import (
	"math"
	"strings"
)

const wordsPerMinute = 250

const (
	DefaultAspects = "No relevant aspects found"
	DefaultReason  = "No explanation provided"
)

// Entry is a feed entry as the feed reported it. Date fields hold the raw
// strings; resolving them is up to the dates package.
type Entry struct {
	Title     string
	Link      string
	Content   string
	Published string
	PubDate   string
	Updated   string
	Created   string
}

type Article struct {
	Title       string
	Link        string
	Content     string
	Published   string
	FeedURL     string
	ReadingTime int
}

type Persona struct {
	Role     string `yaml:"role"`
	Priority string `yaml:"priority"`
	Context  string `yaml:"context"`
}

type Judgment struct {
	Decision bool
	Aspects  string
	Reason   string
}

func DefaultJudgment() Judgment {
	return Judgment{
		Decision: false,
		Aspects:  DefaultAspects,
		Reason:   DefaultReason,
	}
}

// Recommendation pairs an article with the verdict it received in this run.
type Recommendation struct {
	Article  Article
	Judgment Judgment
}

// ReadingTime estimates minutes to read text at 250 words per minute, never less than one.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := int(math.Round(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
