// Package domain contains the subscription protocol types for the broadcast context.
package domain

import (
	"encoding/json"
	"strings"
)

// Topic names.
const (
	TopicPrefix = "difference."
	TopicAll    = TopicPrefix + "all"
)

// Topic is a parsed subscription: every pair, or exactly one.
type Topic struct {
	All  bool
	Pair string
}

// ParseTopic parses "difference.all" or "difference.<pair>". Anything else
// is not a topic.
func ParseTopic(s string) (Topic, bool) {
	if s == TopicAll {
		return Topic{All: true}, true
	}
	pair, ok := strings.CutPrefix(s, TopicPrefix)
	if !ok || pair == "" {
		return Topic{}, false
	}
	return Topic{Pair: pair}, true
}

// PairTopic returns the topic for one pair.
func PairTopic(pair string) Topic { return Topic{Pair: pair} }

// String returns the wire name.
func (t Topic) String() string {
	if t.All {
		return TopicAll
	}
	return TopicPrefix + t.Pair
}

// Matches reports whether a record for pair belongs to the topic.
func (t Topic) Matches(pair string) bool {
	return t.All || t.Pair == pair
}

// Request methods.
const (
	MethodSubscribe = "SUBSCRIBE"
	MethodSnapshot  = "SNAPSHOT"
)

// Request is an inbound client message.
type Request struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Envelope types.
const (
	EnvelopeAll    = "all"
	EnvelopeSingle = "single"
)

// Envelope is an outbound server message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ParseRequest decodes a client message. Method names are case-sensitive.
func ParseRequest(raw []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(raw, &req)
	return req, err
}
