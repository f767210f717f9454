package session

import (
	"fmt"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/model"
)

// AddLink connects origin's hook to destination. A single hook that is
// already linked has its destination moved; a multi hook gains another
// destination on its existing link. The link is returned either way.
func (s *EditingSession) AddLink(user User, origin *model.Node, hook *model.Hook, destination *model.Node) (model.Link, error) {
	const op = "add-link"
	if origin == nil || hook == nil || destination == nil {
		return nil, invalidf(op, "origin, hook and destination are required")
	}
	if !origin.OwnsHook(hook) {
		return nil, invalid(op, model.ErrForeignHook)
	}
	if destination.IsStart() {
		return nil, invalid(op, model.ErrStartDestination)
	}

	var result model.Link
	err := s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(origin) || !s.ownsNode(destination) {
			return nil, model.ErrNotFound
		}
		b := origin.Boundary()
		switch l := b.FindLink(origin, hook).(type) {
		case *model.SingleLink:
			result = l
			return applyNew(moveDestination(l, destination))
		case *model.MultiLink:
			result = l
			return apply(added("add-link-destination", destinationSlot{l, destination, l.Len()}))
		}

		link, err := model.NewLink(origin, hook, destination)
		if err != nil {
			return nil, err
		}
		result = link
		return apply(added(op, linkSlot{b, link, len(b.Links())}))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveLink deletes a link with all of its destinations
func (s *EditingSession) RemoveLink(user User, link model.Link) error {
	const op = "remove-link"
	if link == nil {
		return invalidf(op, "link must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsLink(link) {
			return nil, model.ErrNotFound
		}
		b := link.Boundary()
		idx, err := indexOf(b.Links(), link)
		if err != nil {
			return nil, err
		}
		return apply(removed(op, linkSlot{b, link, idx}))
	})
}

// RemoveLinkDestination removes one destination of a multi link. The link
// stays even when no destinations remain.
func (s *EditingSession) RemoveLinkDestination(user User, link model.Link, index int) error {
	const op = "remove-link-destination"
	ml, ok := link.(*model.MultiLink)
	if !ok || ml == nil {
		return invalid(op, model.ErrNotMultiLink)
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsLink(ml) {
			return nil, model.ErrNotFound
		}
		d, err := ml.Destination(index)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", ml.OriginHook().Name, err)
		}
		return apply(removed(op, destinationSlot{ml, d, index}))
	})
}

// SetLinkDisabled enables or disables a link
func (s *EditingSession) SetLinkDisabled(user User, link model.Link, disabled bool) error {
	const op = "set-link-disabled"
	if link == nil {
		return invalidf(op, "link must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsLink(link) {
			return nil, model.ErrNotFound
		}
		set := func(v bool) error { link.SetDisabled(v); return nil }
		return applyNew(change(op, set, link.Disabled(), disabled))
	})
}
