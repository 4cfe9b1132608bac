package presentations

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/muvico/platform/internal/domain/media"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func normalizeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: field, Reason: "is required"}
	}
	if len([]rune(name)) > maxNameLength {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return name, nil
}

func normalizeColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return "", nil
	}
	if !colorPattern.MatchString(color) {
		return "", &ValidationError{Field: "color", Reason: "must look like #rrggbb"}
	}
	return strings.ToLower(color), nil
}

func checkScreenCount(n int) error {
	if n < 1 || n > MaxScreens {
		return fmt.Errorf("%w: screen count must be between 1 and %d", ErrOutOfBounds, MaxScreens)
	}
	return nil
}

func checkIndexCount(n int) error {
	if n < 1 || n > MaxIndexCount {
		return fmt.Errorf("%w: index count must be between 1 and %d", ErrOutOfBounds, MaxIndexCount)
	}
	return nil
}

// checkSlot validates that (index, screen) lies inside the grid.
func (p *Presentation) checkSlot(index, screen int) error {
	if index < 0 || index >= p.IndexCount {
		return fmt.Errorf("%w: index %d not in [0,%d)", ErrOutOfBounds, index, p.IndexCount)
	}
	if screen < 1 || screen > p.AudioScreen() {
		return fmt.Errorf("%w: screen %d not in [1,%d]", ErrOutOfBounds, screen, p.AudioScreen())
	}
	return nil
}

// checkPlacement enforces that audio files live on the audio screen and
// that the audio screen holds nothing else.
func (p *Presentation) checkPlacement(screen int, m *media.Media) error {
	audioScreen := screen == p.AudioScreen()
	isAudio := m != nil && m.Kind == media.KindAudio
	if audioScreen != isAudio {
		return ErrMediaScreenMismatch
	}
	return nil
}

// checkFree fails when a cue other than self occupies the slot.
func (p *Presentation) checkFree(index, screen int, self string) error {
	if i, ok := p.cueAt(index, screen); ok && p.Cues[i].ID != self {
		return fmt.Errorf("%w: index %d screen %d", ErrSlotOccupied, index, screen)
	}
	return nil
}

func (p *Presentation) addCue(c Cue) error {
	if err := p.checkSlot(c.Index, c.Screen); err != nil {
		return err
	}
	if err := p.checkPlacement(c.Screen, c.Media); err != nil {
		return err
	}
	if err := p.checkFree(c.Index, c.Screen, ""); err != nil {
		return err
	}
	c.PresentationID = p.ID
	p.Cues = append(p.Cues, c)
	SortCues(p.Cues)
	p.recomputeSize()
	return nil
}

// moveCue relocates the cue at position i. When the target slot is taken
// and swap is set the occupant takes the cue's previous slot.
func (p *Presentation) moveCue(i, index, screen int, swap bool) error {
	if err := p.checkSlot(index, screen); err != nil {
		return err
	}
	cue := &p.Cues[i]
	if err := p.checkPlacement(screen, cue.Media); err != nil {
		return err
	}

	if j, ok := p.cueAt(index, screen); ok && j != i {
		if !swap {
			return fmt.Errorf("%w: index %d screen %d", ErrSlotOccupied, index, screen)
		}
		other := &p.Cues[j]
		if err := p.checkPlacement(cue.Screen, other.Media); err != nil {
			return err
		}
		other.Index, other.Screen = cue.Index, cue.Screen
	}
	cue.Index, cue.Screen = index, screen
	SortCues(p.Cues)
	return nil
}

func (p *Presentation) removeCue(id string) error {
	i, err := p.findCue(id)
	if err != nil {
		return err
	}
	p.Cues = append(p.Cues[:i], p.Cues[i+1:]...)
	p.recomputeSize()
	return nil
}

// insertIndex opens an empty row at position at, shifting later cues down
// the grid by one.
func (p *Presentation) insertIndex(at int) error {
	if at < 0 || at > p.IndexCount {
		return fmt.Errorf("%w: index %d not in [0,%d]", ErrOutOfBounds, at, p.IndexCount)
	}
	if p.IndexCount >= MaxIndexCount {
		return fmt.Errorf("%w: presentation already has %d indexes", ErrOutOfBounds, MaxIndexCount)
	}
	for i := range p.Cues {
		if p.Cues[i].Index >= at {
			p.Cues[i].Index++
		}
	}
	p.IndexCount++
	return nil
}

// removeIndex deletes row at and closes the gap.
func (p *Presentation) removeIndex(at int) error {
	if at < 0 || at >= p.IndexCount {
		return fmt.Errorf("%w: index %d not in [0,%d)", ErrOutOfBounds, at, p.IndexCount)
	}
	if p.IndexCount <= 1 {
		return fmt.Errorf("%w: a presentation needs at least one index", ErrOutOfBounds)
	}
	kept := p.Cues[:0]
	for _, c := range p.Cues {
		switch {
		case c.Index == at:
			continue
		case c.Index > at:
			c.Index--
		}
		kept = append(kept, c)
	}
	p.Cues = kept
	p.IndexCount--
	p.recomputeSize()
	return nil
}

func (p *Presentation) setIndexCount(n int) error {
	if err := checkIndexCount(n); err != nil {
		return err
	}
	kept := p.Cues[:0]
	for _, c := range p.Cues {
		if c.Index < n {
			kept = append(kept, c)
		}
	}
	p.Cues = kept
	p.IndexCount = n
	p.recomputeSize()
	return nil
}

// setScreenCount resizes the visual screens. Cues on dropped screens are
// removed and audio cues follow the audio screen.
func (p *Presentation) setScreenCount(n int) error {
	if err := checkScreenCount(n); err != nil {
		return err
	}
	oldAudio := p.AudioScreen()
	kept := p.Cues[:0]
	for _, c := range p.Cues {
		switch {
		case c.Screen == oldAudio:
			c.Screen = n + 1
		case c.Screen > n:
			continue
		}
		kept = append(kept, c)
	}
	p.Cues = kept
	p.ScreenCount = n
	SortCues(p.Cues)
	p.recomputeSize()
	return nil
}
