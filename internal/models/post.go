package models

import (
	"encoding/json"
	"strings"
)

const (
	BlockParagraph = "paragraph"
	BlockSubTopic  = "subTopic"
	BlockImage     = "image"
	BlockLink      = "link"
	BlockQuote     = "quote"
	BlockTable     = "table"
)

var blockKinds = map[string]bool{
	BlockParagraph: true,
	BlockSubTopic:  true,
	BlockImage:     true,
	BlockLink:      true,
	BlockQuote:     true,
	BlockTable:     true,
}

func ValidBlockKind(kind string) bool { return blockKinds[kind] }

type PostType string

const (
	PostNews   PostType = "news"
	PostTender PostType = "tender"
	PostEvent  PostType = "event"
)

func ParsePostType(s string) (PostType, bool) {
	switch PostType(strings.ToLower(strings.TrimSpace(s))) {
	case PostNews:
		return PostNews, true
	case PostTender:
		return PostTender, true
	case PostEvent:
		return PostEvent, true
	}
	return "", false
}

// Block is one content block of a post body.
type Block struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Author  string `json:"author,omitempty"`
	HTML    string `json:"html,omitempty"`
}

type Post struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Source    string `json:"source"`
	Type      string `json:"type"`
	ViewCount Number `json:"view_count"`
	IsPosted  Flag   `json:"is_posted"`
	CreatedAt Time   `json:"createdAt"`
}

// Blocks decodes the JSON body. A body that is not a JSON block list yields
// nil and false. Bodies encoded twice are unwrapped once.
func (p Post) Blocks() ([]Block, bool) {
	return DecodeBlocks(p.Body)
}

func DecodeBlocks(body string) ([]Block, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return []Block{}, true
	}
	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal([]byte(body), &inner); err != nil {
			return nil, false
		}
		body = strings.TrimSpace(inner)
		if body == "" {
			return []Block{}, true
		}
	}
	var blocks []Block
	if err := json.Unmarshal([]byte(body), &blocks); err != nil {
		return nil, false
	}
	if blocks == nil {
		blocks = []Block{}
	}
	return blocks, true
}

// EncodeBlocks serializes blocks in order, dropping kinds the viewer cannot
// render.
func EncodeBlocks(blocks []Block) (string, error) {
	kept := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if !ValidBlockKind(b.Type) {
			continue
		}
		kept = append(kept, b)
	}
	out, err := json.Marshal(kept)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
