package mapview

import (
	"fmt"
	"html"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/movement"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// DefaultPopupMargin clears a marker's radius plus some padding, in pixels.
const DefaultPopupMargin = 30.0

// PopupResolver decides where a popup is anchored
type PopupResolver struct {
	Margin float64
}

// Anchor returns the popup position for a clicked marker. With two or more
// fanned siblings the popup goes above the topmost sibling on screen, so it
// never covers any of them whichever one was clicked.
func (r PopupResolver) Anchor(proj spatial.Projection, clicked spatial.Coord, siblings []spatial.Coord) (spatial.Coord, error) {
	target, err := proj.CoordToPixel(clicked)
	if err != nil {
		return spatial.Coord{}, fmt.Errorf("failed to project clicked marker: %w", err)
	}

	if len(siblings) > 1 {
		pixels := make([]r2.Point, len(siblings))
		for i, s := range siblings {
			px, err := proj.CoordToPixel(s)
			if err != nil {
				return spatial.Coord{}, fmt.Errorf("failed to project sibling %d: %w", i, err)
			}
			pixels[i] = px
		}
		target = pixels[spatial.Topmost(pixels)]
	}

	anchor, err := proj.PixelToCoord(target.Sub(r2.Point{Y: r.Margin}))
	if err != nil {
		return spatial.Coord{}, fmt.Errorf("failed to unproject popup anchor: %w", err)
	}
	return anchor, nil
}

// VisitContent renders the popup body of one stop.
func VisitContent(entity models.Entity, p models.Point) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<strong>%s</strong>", html.EscapeString(displayName(entity)))
	if p.Current {
		b.WriteString(" <em>current position</em>")
	} else {
		fmt.Fprintf(&b, " &middot; stop #%d", p.Label())
	}

	if p.Record.Location != "" {
		fmt.Fprintf(&b, "<div class=\"location\">%s</div>", html.EscapeString(p.Record.Location))
	}

	dates := movement.FormatDateRange(p.Record.DateStart, p.Record.DateEnd)
	if d, ok := movement.DescribeDuration(p.Record.DateStart, p.Record.DateEnd); ok {
		dates += " (" + d + ")"
	}
	if p.Record.Kind != "" && !p.Current {
		dates = html.EscapeString(p.Record.Kind) + " &middot; " + dates
	}
	fmt.Fprintf(&b, "<div class=\"dates\">%s</div>", dates)

	if p.Record.Note != nil && *p.Record.Note != "" {
		fmt.Fprintf(&b, "<div class=\"note\">%s</div>", html.EscapeString(*p.Record.Note))
	}
	return b.String()
}

// ClusterContent renders the summary popup of a multi-visit location.
func ClusterContent(entity models.Entity, c models.LocationCluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<strong>%s</strong> &middot; %d visits<ol>", html.EscapeString(displayName(entity)), len(c.Visits))
	for _, v := range c.Visits {
		fmt.Fprintf(&b, "<li value=\"%d\">%s</li>", v.Label(),
			movement.FormatDateRange(v.Record.DateStart, v.Record.DateEnd))
	}
	b.WriteString("</ol>")
	return b.String()
}

func displayName(entity models.Entity) string {
	if entity.Name != "" {
		return entity.Name
	}
	return entity.ID
}
