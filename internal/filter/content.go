package filter

import "github.com/sakif/nexusmena/internal/model"

// ItemFields projects a content item onto the filterable fields of its kind.
//
//	news       category = news category (Tech, Startup, Economy)
//	startup    category = news category, sector = startup sector
//	event      category = event type (Conference, Hackathon, ...)
//	podcast    topic, language, duration
//	newsletter category = frequency
//	partner    region = partner type
func ItemFields(it model.Item) Fields {
	f := Fields{
		Title:       it.Title,
		Description: it.Description,
		Region:      string(it.Region),
	}
	switch it.Kind {
	case model.KindNews, model.KindStartup:
		if it.News == nil {
			break
		}
		f.Category = it.News.Category
		if it.Kind == model.KindStartup {
			f.Sector = it.News.Sector
		}
	case model.KindEvent:
		if it.Event != nil {
			f.Category = it.Event.Type
		}
	case model.KindPodcast:
		if it.Podcast != nil {
			f.Topic = it.Podcast.Topic
			f.Language = string(it.Podcast.Language)
			f.Duration = it.Podcast.Duration
			f.HasDuration = true
		}
	case model.KindNewsletter:
		if it.Newsletter != nil {
			f.Category = it.Newsletter.Frequency
		}
	case model.KindPartner:
		if it.Partner != nil {
			f.Region = string(it.Partner.Type)
		}
	}
	return f
}

// Items filters content items.
func Items(items []model.Item, c Criteria) []model.Item {
	return ApplyFunc(items, c, ItemFields)
}

// ResourceFields projects a resource; its category is the resource type.
func ResourceFields(r model.Resource) Fields {
	return Fields{
		Title:       r.Name,
		Description: r.Description,
		Category:    string(r.Type),
	}
}

// Resources filters the resource directory.
func Resources(rs []model.Resource, c Criteria) []model.Resource {
	return ApplyFunc(rs, c, ResourceFields)
}

// MetricFields projects a market metric; its category is the asset class.
func MetricFields(m model.MarketMetric) Fields {
	return Fields{
		Title:    m.Name,
		Category: string(m.Type),
	}
}

// Metrics filters a market snapshot.
func Metrics(ms []model.MarketMetric, c Criteria) []model.MarketMetric {
	return ApplyFunc(ms, c, MetricFields)
}
