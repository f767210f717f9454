package model

import "github.com/google/uuid"

// block is the shared shape of comment and documentation annotations
type block struct {
	id       uuid.UUID
	text     string
	location Rectangle
}

func (b *block) ID() uuid.UUID { return b.id }
func (b *block) Text() string { return b.text }
func (b *block) SetText(text string) { b.text = text }
func (b *block) Location() Rectangle { return b.location }
func (b *block) SetLocation(r Rectangle) { b.location = r }

// CommentBlock is a free-text note placed on a boundary's canvas
type CommentBlock struct {
	block
}

// NewCommentBlock creates a detached comment
func NewCommentBlock(text string, location Rectangle) *CommentBlock {
	return &CommentBlock{block{id: uuid.New(), text: text, location: location}}
}

// DocumentationBlock is a documentation annotation placed on a boundary's canvas
type DocumentationBlock struct {
	block
}

// NewDocumentationBlock creates a detached documentation block
func NewDocumentationBlock(text string, location Rectangle) *DocumentationBlock {
	return &DocumentationBlock{block{id: uuid.New(), text: text, location: location}}
}
