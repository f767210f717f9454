package session

import (
	"github.com/google/uuid"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/model"
)

// AddCommentBlock places a comment on a boundary's canvas
func (s *EditingSession) AddCommentBlock(user User, boundary *model.Boundary, text string, location model.Rectangle) (*model.CommentBlock, error) {
	const op = "add-comment-block"
	if boundary == nil {
		return nil, invalidf(op, "boundary must not be nil")
	}
	block := model.NewCommentBlock(text, location)
	err := s.edit(op, user, func() (command.Command, error) {
		if !s.owns(boundary) {
			return nil, model.ErrNotFound
		}
		return apply(added(op, commentSlot{boundary, block, len(boundary.CommentBlocks())}))
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// RemoveCommentBlock deletes a comment
func (s *EditingSession) RemoveCommentBlock(user User, block *model.CommentBlock) error {
	const op = "remove-comment-block"
	if block == nil {
		return invalidf(op, "comment block must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		_, owner := s.ms.FindCommentBlock(block.ID())
		if owner == nil {
			return nil, model.ErrNotFound
		}
		idx, err := indexOf(owner.CommentBlocks(), block)
		if err != nil {
			return nil, err
		}
		return apply(removed(op, commentSlot{owner, block, idx}))
	})
}

// AddDocumentationBlock places a documentation note on a boundary's canvas
func (s *EditingSession) AddDocumentationBlock(user User, boundary *model.Boundary, text string, location model.Rectangle) (*model.DocumentationBlock, error) {
	const op = "add-documentation-block"
	if boundary == nil {
		return nil, invalidf(op, "boundary must not be nil")
	}
	block := model.NewDocumentationBlock(text, location)
	err := s.edit(op, user, func() (command.Command, error) {
		if !s.owns(boundary) {
			return nil, model.ErrNotFound
		}
		return apply(added(op, documentationSlot{boundary, block, len(boundary.DocumentationBlocks())}))
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// RemoveDocumentationBlock deletes a documentation note
func (s *EditingSession) RemoveDocumentationBlock(user User, block *model.DocumentationBlock) error {
	const op = "remove-documentation-block"
	if block == nil {
		return invalidf(op, "documentation block must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		_, owner := s.ms.FindDocumentationBlock(block.ID())
		if owner == nil {
			return nil, model.ErrNotFound
		}
		idx, err := indexOf(owner.DocumentationBlocks(), block)
		if err != nil {
			return nil, err
		}
		return apply(removed(op, documentationSlot{owner, block, idx}))
	})
}

// Block is the editable surface shared by comment and documentation blocks
type Block interface {
	ID() uuid.UUID
	Text() string
	SetText(text string)
	Location() model.Rectangle
	SetLocation(r model.Rectangle)
}

func (s *EditingSession) ownsBlock(block Block) bool {
	switch b := block.(type) {
	case *model.CommentBlock:
		found, _ := s.ms.FindCommentBlock(b.ID())
		return found == b
	case *model.DocumentationBlock:
		found, _ := s.ms.FindDocumentationBlock(b.ID())
		return found == b
	}
	return false
}

// SetBlockText changes the text of a comment or documentation block
func (s *EditingSession) SetBlockText(user User, block Block, text string) error {
	const op = "set-block-text"
	if block == nil {
		return invalidf(op, "block must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsBlock(block) {
			return nil, model.ErrNotFound
		}
		set := func(v string) error { block.SetText(v); return nil }
		return applyNew(change(op, set, block.Text(), text))
	})
}

// SetBlockLocation moves a comment or documentation block
func (s *EditingSession) SetBlockLocation(user User, block Block, location model.Rectangle) error {
	const op = "set-block-location"
	if block == nil {
		return invalidf(op, "block must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsBlock(block) {
			return nil, model.ErrNotFound
		}
		set := func(v model.Rectangle) error { block.SetLocation(v); return nil }
		return applyNew(change(op, set, block.Location(), location))
	})
}
