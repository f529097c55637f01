package scan

// PageInfo describes the rendered page of a Ready session.
type PageInfo struct {
	Index  int    `json:"index"`
	Count  int    `json:"count"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	MIME   string `json:"mime"`
}

// ItemView is an Item plus its rect and latest explanation, for presentation.
type ItemView struct {
	Item
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Explanation string `json:"explanation,omitempty"`
}

// Snapshot is a copy of the session state; it shares no mutable memory with the session.
type Snapshot struct {
	SessionID  string     `json:"session_id"`
	State      State      `json:"state"`
	Generation uint64     `json:"generation"`
	Page       *PageInfo  `json:"page,omitempty"`
	PageJPEG   []byte     `json:"-"`
	Items      []ItemView `json:"items"`
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		State:      s.state,
		Generation: s.gen,
		Items:      make([]ItemView, 0, len(s.items)),
	}
	if s.page != nil {
		snap.Page = &PageInfo{
			Index:  s.page.Index,
			Count:  s.page.Count,
			Width:  s.page.Width(),
			Height: s.page.Height(),
			MIME:   s.page.MIME,
		}
		snap.PageJPEG = append([]byte(nil), s.pageJPEG...)
	}
	for _, it := range s.items {
		it.Image = append([]byte(nil), it.Image...)
		snap.Items = append(snap.Items, ItemView{
			Item:        it,
			X:           it.Rect.Min.X,
			Y:           it.Rect.Min.Y,
			Width:       it.Rect.Dx(),
			Height:      it.Rect.Dy(),
			Explanation: s.explanations[it.ID],
		})
	}
	return snap
}
