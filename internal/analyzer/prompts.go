package analyzer

import "retouch/internal/middleware"

func facePrompt(locale string) string {
	if locale == middleware.LocaleEN {
		return `Analyze this photo of a person and respond ONLY with valid JSON using this schema:
{"face_shape": string, "skin_tone": string, "hair": {"length": "short"|"medium"|"long", "color": string, "texture": string},
 "beard": {"style": string, "density": "low"|"medium"|"high"}, "lighting": "good"|"fair"|"poor", "pose": "frontal"|"side",
 "quality": {"blur": "low"|"medium"|"high", "resolution": "low"|"medium"|"high"},
 "haircutRecommendation": string, "beardRecommendation": string, "suggestedText": string}
suggestedText is one short instruction in English describing the single best change. Do not add any text outside the JSON.`
	}
	return `Analiza esta foto de una persona y responde SOLO con JSON válido usando este esquema:
{"face_shape": string, "skin_tone": string, "hair": {"length": "corto"|"medio"|"largo", "color": string, "texture": string},
 "beard": {"style": string, "density": "baja"|"media"|"alta"}, "lighting": "buena"|"regular"|"pobre", "pose": "frontal"|"ladeado",
 "quality": {"blur": "baja"|"media"|"alta", "resolution": "baja"|"media"|"alta"},
 "haircutRecommendation": string, "beardRecommendation": string, "suggestedText": string}
suggestedText es una instrucción corta en español con el mejor cambio. No agregues texto fuera del JSON.`
}

func bodyPrompt(locale string) string {
	if locale == middleware.LocaleEN {
		return `Analyze this full-body photo and respond ONLY with valid JSON using this schema:
{"body_type": string, "proportions": {"shoulders": string, "waist": string, "hips": string, "legs": string}, "posture": string,
 "clothing": {"style": string, "fit": string, "colors": [string]}, "best_silhouettes": [string],
 "recommended_items": [{"category": string, "item": string, "color": string, "fit": string, "reason": string}],
 "style_tips": [string], "suggestedText": string}
suggestedText is one short clothing change in English. Do not add any text outside the JSON.`
	}
	return `Analiza esta foto de cuerpo completo y responde SOLO con JSON válido usando este esquema:
{"body_type": string, "proportions": {"shoulders": string, "waist": string, "hips": string, "legs": string}, "posture": string,
 "clothing": {"style": string, "fit": string, "colors": [string]}, "best_silhouettes": [string],
 "recommended_items": [{"category": string, "item": string, "color": string, "fit": string, "reason": string}],
 "style_tips": [string], "suggestedText": string}
suggestedText es un cambio de ropa corto en español. No agregues texto fuera del JSON.`
}

type localized struct {
	es, en string
}

func (l localized) in(locale string) string {
	if locale == middleware.LocaleEN {
		return l.en
	}
	return l.es
}

var (
	msgBlocked = localized{
		es: "Imagen bloqueada por contenido no apropiado.",
		en: "Blocked for inappropriate content.",
	}
	msgNoFace = localized{
		es: "No se detectó una cara frontal clara.",
		en: "No clear face detected.",
	}
	msgMultiFace = localized{
		es: "Se detectaron varias personas en la imagen.",
		en: "Multiple people detected.",
	}
	msgVisionAdvisory = localized{
		es: "Análisis automático: la imagen parece adecuada. Recomendamos un corte medio con laterales más cortos y barba tipo stubble para enfatizar la mandíbula. Evita accesorios voluminosos.",
		en: "Automatic analysis: image looks OK. We recommend a medium cut with shorter sides and a stubble beard to emphasize the jawline. Avoid bulky accessories.",
	}
	msgDefaultAdvisory = localized{
		es: "¡Perfecto! He analizado tu foto.\n\nRECOMENDACIONES:\nPara el cabello, te recomiendo un corte medio con laterales degradados (fade) para un look moderno.\nPara la barba, una barba tipo stubble (de 2-3mm) definiría mejor tu mandíbula.",
		en: "Perfect! I've analyzed your photo.\n\nRECOMMENDATIONS:\nFor your hair, I recommend a medium cut with faded sides for a modern look.\nFor your beard, a stubble beard (2-3mm) would better define your jawline.",
	}
	msgDefaultSuggested = localized{
		es: "Aplicar corte con fade y barba stubble.",
		en: "Apply fade cut with stubble beard.",
	}
	msgBaseSuggested = localized{
		es: "Prueba una barba stubble para más definición.",
		en: "Try a stubble beard for more definition.",
	}
	msgDefaultHairColor = localized{es: "castaño", en: "brown"}
	msgBodySuggested    = localized{
		es: "Probar una chaqueta de corte regular en color neutro.",
		en: "Try a regular fit jacket in a neutral color.",
	}
)

var hairColorNames = map[string]localized{
	"red":   {es: "rojo/rojizo", en: "red"},
	"blond": {es: "rubio", en: "blond"},
	"black": {es: "negro/oscuro", en: "black"},
	"brown": {es: "castaño", en: "brown"},
}
