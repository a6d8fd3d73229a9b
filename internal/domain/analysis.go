package domain

import "encoding/json"

// Analysis modes.
const (
	ModeFace = "face"
	ModeBody = "body"
)

type Hair struct {
	Length  string `json:"length"`
	Color   string `json:"color"`
	Texture string `json:"texture,omitempty"`
}

type Beard struct {
	Style   string `json:"style"`
	Density string `json:"density,omitempty"`
}

type Quality struct {
	Blur       string `json:"blur"`
	Resolution string `json:"resolution"`
}

type Advisory struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence,omitempty"`
}

// FaceAnalysis describes a portrait: hair, beard, lighting and framing.
type FaceAnalysis struct {
	FaceShape     string    `json:"face_shape"`
	SkinTone      string    `json:"skin_tone,omitempty"`
	Hair          Hair      `json:"hair"`
	Beard         Beard     `json:"beard"`
	Lighting      string    `json:"lighting"`
	Pose          string    `json:"pose"`
	Quality       Quality   `json:"quality"`
	Advisory      *Advisory `json:"advisory,omitempty"`
	SuggestedText string    `json:"suggestedText"`
	Warnings      []string  `json:"warnings,omitempty"`
	Blocked       bool      `json:"blocked,omitempty"`
	Provider      string    `json:"provider,omitempty"`
}

type Proportions struct {
	Shoulders string `json:"shoulders"`
	Waist     string `json:"waist"`
	Hips      string `json:"hips"`
	Legs      string `json:"legs"`
}

type Clothing struct {
	Style  string   `json:"style"`
	Fit    string   `json:"fit"`
	Colors []string `json:"colors"`
}

type RecommendedItem struct {
	Category string `json:"category"`
	Item     string `json:"item"`
	Color    string `json:"color"`
	Fit      string `json:"fit"`
	Reason   string `json:"reason"`
}

// BodyAnalysis describes a full-body photo and styling suggestions.
type BodyAnalysis struct {
	Mode             string            `json:"mode"`
	BodyType         string            `json:"body_type"`
	Proportions      Proportions       `json:"proportions"`
	Posture          string            `json:"posture"`
	Clothing         Clothing          `json:"clothing"`
	BestSilhouettes  []string          `json:"best_silhouettes"`
	RecommendedItems []RecommendedItem `json:"recommended_items"`
	StyleTips        []string          `json:"style_tips"`
	SuggestedText    string            `json:"suggestedText"`
	Warnings         []string          `json:"warnings,omitempty"`
	Provider         string            `json:"provider,omitempty"`
}

// Analysis is the payload returned by the analyze operation. Exactly one of
// Face or Body is set.
type Analysis struct {
	Face *FaceAnalysis
	Body *BodyAnalysis
}

func (a Analysis) SuggestedText() string {
	switch {
	case a.Face != nil:
		return a.Face.SuggestedText
	case a.Body != nil:
		return a.Body.SuggestedText
	}
	return ""
}

func (a Analysis) Value() any {
	if a.Body != nil {
		return a.Body
	}
	return a.Face
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// UnmarshalJSON picks the body shape when the payload carries mode "body".
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var probe struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Mode == ModeBody {
		var b BodyAnalysis
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*a = Analysis{Body: &b}
		return nil
	}
	var f FaceAnalysis
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Analysis{Face: &f}
	return nil
}
