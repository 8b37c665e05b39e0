package poller

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/franckalain/foodanalysis/internal/models"
)

// TextRenderer writes the display to a terminal or log.
type TextRenderer struct {
	mu         sync.Mutex
	w          io.Writer
	baseURL    string
	lastStatus string
}

// NewTextRenderer renders to w. Image paths are printed relative to baseURL.
func NewTextRenderer(w io.Writer, baseURL string) *TextRenderer {
	return &TextRenderer{w: w, baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *TextRenderer) Status(text, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := text
	if detail != "" {
		line += " | " + detail
	}
	// Repeated polls with no change would otherwise flood the output.
	if line == r.lastStatus {
		return
	}
	r.lastStatus = line
	fmt.Fprintf(r.w, "[status] %s\n", line)
}

func (r *TextRenderer) Processing(rec *models.AnalysisRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Analyzing %s ...\n", rec.Image.OriginalName)
}

func (r *TextRenderer) Show(rec *models.AnalysisRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := rec.Analysis
	n := a.Nutrition
	var b strings.Builder
	fmt.Fprintf(&b, "==== Food Analysis Results (#%d) ====\n", rec.ID)
	fmt.Fprintf(&b, "Image:      %s%s (%s)\n", r.baseURL, rec.Image.ServedPath, rec.Image.OriginalName)
	fmt.Fprintf(&b, "Food Type:  %s\n", a.FoodType)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", a.Confidence*100)
	fmt.Fprintf(&b, "Weight:     %gg\n", rec.WeightGrams)
	fmt.Fprintf(&b, "Nutrition (per %gg):\n", rec.WeightGrams)
	fmt.Fprintf(&b, "  Calories %d | Protein %dg | Carbs %dg | Fat %dg | Fiber %dg\n",
		n.Calories, n.Protein, n.Carbs, n.Fat, n.Fiber)
	if len(a.HealthSuggestions) > 0 {
		b.WriteString("Health Suggestions:\n")
		for _, s := range a.HealthSuggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	b.WriteString("====================================\n")
	io.WriteString(r.w, b.String())
}

func (r *TextRenderer) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, "(results cleared)")
}
