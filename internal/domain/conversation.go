package domain

import "time"

// Conversation is an ordered, append-mostly log of turns. The zero TurnID
// never identifies a turn, which lets it double as the unset anchor value.
// Callers serialize access; a generation turn is the only writer while it
// runs.
type Conversation struct {
	turns  []Turn
	nextID TurnID
	anchor TurnID
}

func NewConversation() *Conversation {
	return &Conversation{nextID: 1}
}

// RestoreConversation rebuilds a conversation from persisted turns. The ID
// counter resumes past the highest restored turn so new turns never collide.
func RestoreConversation(turns []Turn, anchor TurnID) *Conversation {
	c := &Conversation{
		turns:  append([]Turn(nil), turns...),
		nextID: 1,
		anchor: anchor,
	}
	for _, t := range c.turns {
		if t.ID >= c.nextID {
			c.nextID = t.ID + 1
		}
	}
	return c
}

func (c *Conversation) Append(role Role, text string, at time.Time) Turn {
	t := Turn{ID: c.nextID, Role: role, Text: text, CreatedAt: at}
	c.nextID++
	c.turns = append(c.turns, t)
	return t
}

// Turns exposes the live backing slice for read-only iteration.
func (c *Conversation) Turns() []Turn {
	return c.turns
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

func (c *Conversation) Last() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

func (c *Conversation) Get(id TurnID) (Turn, bool) {
	if i := c.IndexOf(id); i >= 0 {
		return c.turns[i], true
	}
	return Turn{}, false
}

func (c *Conversation) IndexOf(id TurnID) int {
	for i := range c.turns {
		if c.turns[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Conversation) SetText(id TurnID, text string) bool {
	if i := c.IndexOf(id); i >= 0 {
		c.turns[i].Text = text
		return true
	}
	return false
}

func (c *Conversation) AppendText(id TurnID, delta string) bool {
	if i := c.IndexOf(id); i >= 0 {
		c.turns[i].Text += delta
		return true
	}
	return false
}

// Remove drops the identified turn. An anchor pointing at it is cleared, not
// left dangling.
func (c *Conversation) Remove(id TurnID) bool {
	i := c.IndexOf(id)
	if i < 0 {
		return false
	}
	c.turns = append(c.turns[:i], c.turns[i+1:]...)
	if c.anchor == id {
		c.anchor = 0
	}
	return true
}

func (c *Conversation) Clear() {
	c.turns = nil
	c.anchor = 0
}

func (c *Conversation) Anchor() TurnID {
	return c.anchor
}

func (c *Conversation) SetAnchor(id TurnID) {
	c.anchor = id
}

func (c *Conversation) ClearAnchor() {
	c.anchor = 0
}
