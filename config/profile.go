package config

// ProfileName 部署形态
type ProfileName string

const (
	// ProfileVercel serverless 函数版本（默认）
	ProfileVercel ProfileName = "vercel"
	// ProfileWorker 边缘 worker 版本
	ProfileWorker ProfileName = "worker"
)

// Profile 每种部署形态各自的默认值
type Profile struct {
	Name             ProfileName
	DefaultModel     string
	SystemPrompt     string
	Referer          string
	Title            string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
}

var profiles = map[ProfileName]Profile{
	ProfileVercel: {
		Name:             ProfileVercel,
		DefaultModel:     "mistralai/mistral-7b-instruct:free",
		SystemPrompt:     "You are an expert social media content generator. Your task is to output ONLY the raw tweet text. Do not include any introductory text, explanations, or quotes. Do not repeat the prompt. Ensure the tweet is within the character limit.",
		Referer:          "https://xpostr.app",
		Title:            "xPostr",
		AllowMethods:     "GET,OPTIONS,PATCH,DELETE,POST,PUT",
		AllowHeaders:     "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version",
		AllowCredentials: true,
	},
	ProfileWorker: {
		Name:         ProfileWorker,
		DefaultModel: "google/gemini-2.0-flash-exp:free",
		SystemPrompt: "You are an expert social media content generator. Output ONLY the raw tweet text. No intro, no quotes.",
		Referer:      "https://xpostr.workers.dev",
		Title:        "xPostr Cloudflare",
		AllowMethods: "GET, HEAD, POST, OPTIONS",
		AllowHeaders: "Content-Type",
	},
}

// LookupProfile 未知名称回退到 vercel
func LookupProfile(name ProfileName) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles[ProfileVercel]
}
