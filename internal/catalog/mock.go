// internal/catalog/mock.go
package catalog

import "github.com/RegistryAccord/registryaccord-novatube-go/internal/model"

// DefaultVideoURL is used for published items that carry no uploaded media.
const DefaultVideoURL = "https://storage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"

// MockItems returns the demo catalog the service starts with.
func MockItems() []model.ContentItem {
	return []model.ContentItem{
		{
			ID:          "v1",
			Title:       "The Future of Neural Networks",
			Description: "Exploring the depths of generative AI and its impact on creativity.",
			Thumbnail:   "https://picsum.photos/seed/ai/800/450",
			VideoURL:    DefaultVideoURL,
			Author:      "TechNexus",
			Views:       "1.2M",
			Timestamp:   "2 days ago",
			Category:    model.CategoryScience,
			Duration:    "12:45",
			Mood:        model.MoodFocus,
		},
		{
			ID:          "v2",
			Title:       "Interstellar Travel: Physics vs Reality",
			Description: "Can we ever reach the stars? A deep dive into warp drives and relativity.",
			Thumbnail:   "https://picsum.photos/seed/space/800/450",
			VideoURL:    "https://storage.googleapis.com/gtv-videos-bucket/sample/ElephantsDream.mp4",
			Author:      "AstroMind",
			Views:       "850K",
			Timestamp:   "1 week ago",
			Category:    model.CategoryEducation,
			Duration:    "22:10",
			Mood:        model.MoodCalm,
		},
		{
			ID:          "v3",
			Title:       "Urban Cyberpunk Photography Guide",
			Description: "Capturing neon-drenched cityscapes at midnight.",
			Thumbnail:   "https://picsum.photos/seed/cyber/800/450",
			VideoURL:    "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerBlazes.mp4",
			Author:      "NeonVisuals",
			Views:       "340K",
			Timestamp:   "5 hours ago",
			Category:    model.CategoryArt,
			Duration:    "08:15",
			Mood:        model.MoodDark,
		},
		{
			ID:          "v4",
			Title:       "Extreme Parkour: Tokyo Rooftops",
			Description: "High energy stunts in the heart of Shinjuku.",
			Thumbnail:   "https://picsum.photos/seed/parkour/800/450",
			VideoURL:    "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerEscapes.mp4",
			Author:      "AdrenaLine",
			Views:       "2.1M",
			Timestamp:   "1 month ago",
			Category:    model.CategorySports,
			Duration:    "10:30",
			Mood:        model.MoodEnergetic,
		},
		{
			ID:          "v5",
			Title:       "Top 10 AI Fails 2024",
			Description: "Hilarious moments when the machines got it wrong.",
			Thumbnail:   "https://picsum.photos/seed/fails/800/450",
			VideoURL:    "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerFun.mp4",
			Author:      "ComedyHub",
			Views:       "5.4M",
			Timestamp:   "2 days ago",
			Category:    model.CategoryEntertainment,
			Duration:    "15:00",
			Mood:        model.MoodFunny,
		},
	}
}
