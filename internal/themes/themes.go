package themes

// Theme 视觉主题
// 主题只被前端阅读视图消费，生成流水线仅透传 Book 上的主题 ID
type Theme struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Styles          Styles `json:"styles"`
	Fonts           Fonts  `json:"fonts"`
	PreviewGradient string `json:"preview_gradient"`
}

// Styles 内联应用的颜色与背景装饰，保证打印输出的准确性
type Styles struct {
	Background  string `json:"background"`
	Color       string `json:"color"`
	Accent      string `json:"accent"`
	BorderColor string `json:"border_color"`
	BgImage     string `json:"bg_image,omitempty"`
	BgSize      string `json:"bg_size,omitempty"`
}

// Fonts 正文与标题的字体角色
type Fonts struct {
	Body    string `json:"body"`
	Display string `json:"display"`
}

var catalog = []Theme{
	{
		ID:          "classic",
		Name:        "Classic Vellum",
		Description: "Timeless cream paper with sharp black ink. The standard for literary fiction.",
		Styles: Styles{
			Background:  "#fcfaf5",
			Color:       "#1c1917",
			Accent:      "#b4941f",
			BorderColor: "#e5e5e5",
			BgImage:     "url('https://www.transparenttextures.com/patterns/cream-paper.png')",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-display"},
		PreviewGradient: "from-[#fcfaf5] to-[#f0e6d2]",
	},
	{
		ID:          "vintage",
		Name:        "Antique Leather",
		Description: "Rich mahogany tones and warm parchment text. Perfect for history and fantasy.",
		Styles: Styles{
			Background:  "#271c19",
			Color:       "#e6dcc8",
			Accent:      "#c5a065",
			BorderColor: "#4a3b32",
			BgImage:     "url('https://www.transparenttextures.com/patterns/leather.png')",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-display"},
		PreviewGradient: "from-[#271c19] to-[#1a1210]",
	},
	{
		ID:          "modern",
		Name:        "Modern Slate",
		Description: "Clean, cool grey tones with high legibility. Ideal for non-fiction and essays.",
		Styles: Styles{
			Background:  "#f8fafc",
			Color:       "#334155",
			Accent:      "#475569",
			BorderColor: "#cbd5e1",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-sans"},
		PreviewGradient: "from-[#f8fafc] to-[#e2e8f0]",
	},
	{
		ID:          "dark_academia",
		Name:        "Dark Academia",
		Description: "Moody, mysterious, and intellectual charcoal aesthetics.",
		Styles: Styles{
			Background:  "#1c1917",
			Color:       "#e7e5e4",
			Accent:      "#a8a29e",
			BorderColor: "#44403c",
			BgImage:     "url('https://www.transparenttextures.com/patterns/stardust.png')",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-cinzel"},
		PreviewGradient: "from-[#1c1917] to-[#0c0a09]",
	},
	{
		ID:          "starlight_grid",
		Name:        "Starlight Blueprint",
		Description: "A crisp, light technical grid. Perfect for hard Sci-Fi and futuristic concepts.",
		Styles: Styles{
			Background:  "#f0f9ff",
			Color:       "#0369a1",
			Accent:      "#0ea5e9",
			BorderColor: "#bae6fd",
			BgImage:     "radial-gradient(#bae6fd 1px, transparent 1px)",
			BgSize:      "20px 20px",
		},
		Fonts:           Fonts{Body: "font-sans", Display: "font-mono"},
		PreviewGradient: "from-[#f0f9ff] to-[#e0f2fe]",
	},
	{
		ID:          "velvet_letter",
		Name:        "Velvet Letter",
		Description: "Elegant cream paper with a subtle regal pattern. Sophisticated and haunting.",
		Styles: Styles{
			Background:  "#fffdf5",
			Color:       "#881337",
			Accent:      "#9f1239",
			BorderColor: "#fecdd3",
			BgImage:     "url('https://www.transparenttextures.com/patterns/gplay.png')",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-display"},
		PreviewGradient: "from-[#fffdf5] to-[#ffe4e6]",
	},
	{
		ID:          "sakura_bloom",
		Name:        "Sakura Bloom",
		Description: "Delicate pinks with a soft floral texture. Ideal for Romance and Poetry.",
		Styles: Styles{
			Background:  "#fff1f2",
			Color:       "#4c0519",
			Accent:      "#fb7185",
			BorderColor: "#fecdd3",
			BgImage:     "url('https://www.transparenttextures.com/patterns/flower-trail.png')",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-display"},
		PreviewGradient: "from-[#fff1f2] to-[#fda4af]",
	},
	{
		ID:          "herbalist",
		Name:        "Herbalist Journal",
		Description: "Recycled paper texture with organic greens. For Nature and Growth stories.",
		Styles: Styles{
			Background:  "#fcfce3",
			Color:       "#14532d",
			Accent:      "#65a30d",
			BorderColor: "#d9f99d",
			BgImage:     "url('https://www.transparenttextures.com/patterns/rice-paper.png')",
		},
		Fonts:           Fonts{Body: "font-sans", Display: "font-serif"},
		PreviewGradient: "from-[#fcfce3] to-[#bef264]",
	},
	{
		ID:          "glacial_min",
		Name:        "Glacial Minimalist",
		Description: "Stark white with sharp blue undertones. High contrast for Thrillers.",
		Styles: Styles{
			Background:  "#ffffff",
			Color:       "#0f172a",
			Accent:      "#06b6d4",
			BorderColor: "#e2e8f0",
			BgImage:     "url('https://www.transparenttextures.com/patterns/subtle-white-feathers.png')",
		},
		Fonts:           Fonts{Body: "font-sans", Display: "font-sans"},
		PreviewGradient: "from-[#ffffff] to-[#cffafe]",
	},
	{
		ID:          "celestial_palace",
		Name:        "Celestial Palace",
		Description: "Majestic white marble with gold and royal purple accents. For High Fantasy.",
		Styles: Styles{
			Background:  "#fafafa",
			Color:       "#4c1d95",
			Accent:      "#d4af37",
			BorderColor: "#e9d5ff",
			BgImage:     "url('https://www.transparenttextures.com/patterns/white-wall-3.png')",
		},
		Fonts:           Fonts{Body: "font-serif", Display: "font-display"},
		PreviewGradient: "from-[#fafafa] to-[#f3e8ff]",
	},
}

// List 返回全部主题
func List() []Theme {
	result := make([]Theme, len(catalog))
	copy(result, catalog)
	return result
}

// GetByID 按 ID 查找主题，未命中时回退到第一个主题
func GetByID(id string) Theme {
	for _, t := range catalog {
		if t.ID == id {
			return t
		}
	}
	return catalog[0]
}

// Exists 判断主题 ID 是否存在
func Exists(id string) bool {
	for _, t := range catalog {
		if t.ID == id {
			return true
		}
	}
	return false
}
