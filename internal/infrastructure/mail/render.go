package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

// AnnouncementURL links to the issuer's announcement list.
func AnnouncementURL(code string) string {
	return "http://data.eastmoney.com/notices/detail/" + code + "/.html"
}

type item struct {
	Code         string
	Name         string
	Quarter      string
	Disclosed    string
	ForecastType string
	ChangeRange  string
	Reason       string
	Comment      string
	URL          string
}

type page struct {
	Title    string
	Subtitle string
	Banner   string
	Items    []item
	SentAt   string
}

var pageTemplate = template.Must(template.New("email").Parse(`<div style="font-family: Arial, sans-serif; max-width: 650px; margin: 0 auto; padding: 20px;">
<div style="background: #667eea; padding: 25px; border-radius: 10px 10px 0 0; text-align: center;">
<h2 style="color: #ffffff; margin: 0;">{{.Title}}</h2>
<p style="color: #e0e7ff; margin: 8px 0 0 0;">{{.Subtitle}}</p>
</div>
<div style="background-color: #fef3c7; padding: 15px; border-left: 4px solid #f59e0b; margin: 20px 0;">
<p style="color: #92400e; margin: 0;"><strong>{{.Banner}}</strong></p>
</div>
{{range .Items}}<div class="item" style="background-color: #f0fdf4; border-left: 4px solid #10b981; padding: 16px; margin-bottom: 12px;">
<p class="item-line"><strong>{{.Name}}</strong> {{.Code}} · {{.ForecastType}} {{.ChangeRange}}</p>
<p class="item-line">报告期：{{.Quarter}} · 公告日期：{{.Disclosed}}</p>
{{if .Reason}}<p class="item-line">变动原因：{{.Reason}}</p>{{end}}
{{if .Comment}}<p class="item-line">AI 点评：{{.Comment}}</p>{{end}}
<p class="item-line"><a href="{{.URL}}">查看完整公告</a></p>
</div>
{{end}}<div style="margin-top: 30px; border-top: 2px solid #e5e7eb; color: #9ca3af; font-size: 12px; text-align: center;">
<p>数据来源：东方财富</p>
<p>推送时间：{{.SentAt}}</p>
</div>
</div>`))

// Renderer builds instant and daily-summary emails; timestamps render in loc.
type Renderer struct {
	loc *time.Location
}

var _ ports.DigestRenderer = (*Renderer)(nil)

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// Instant renders the notification for newly discovered reports.
func (r *Renderer) Instant(reports []domain.ScoredReport, at time.Time) (string, string, error) {
	subject := fmt.Sprintf("业绩预增提醒：发现 %d 只股票发布业绩预增公告", len(reports))
	body, err := r.render(page{
		Title:    "业绩预增即时提醒",
		Subtitle: "发现新增公告，立即推送",
		Banner:   fmt.Sprintf("共发现 %d 只股票发布业绩预增公告", len(reports)),
		Items:    items(reports),
		SentAt:   at.In(r.loc).Format("2006-01-02 15:04:05"),
	})
	return subject, body, err
}

// Summary renders the digest of one calendar day's discoveries.
func (r *Renderer) Summary(day time.Time, reports []domain.ScoredReport) (string, string, error) {
	date := day.In(r.loc).Format(domain.DateLayout)
	subject := fmt.Sprintf("每日汇总：%s 共 %d 只股票发布业绩预增公告", date, len(reports))
	body, err := r.render(page{
		Title:    "每日业绩预增汇总",
		Subtitle: date,
		Banner:   fmt.Sprintf("%s 共新增 %d 只股票发布业绩预增公告", date, len(reports)),
		Items:    items(reports),
		SentAt:   time.Now().In(r.loc).Format("2006-01-02 15:04:05"),
	})
	return subject, body, err
}

// PlainText renders a compact digest for chat channels.
func (r *Renderer) PlainText(reports []domain.ScoredReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "业绩预增提醒：%d 只股票\n", len(reports))
	for _, it := range items(reports) {
		fmt.Fprintf(&b, "\n%s %s %s %s\n报告期 %s · 公告 %s\n", it.Name, it.Code, it.ForecastType, it.ChangeRange, it.Quarter, it.Disclosed)
		if it.Comment != "" {
			fmt.Fprintf(&b, "%s\n", it.Comment)
		}
		b.WriteString(it.URL + "\n")
	}
	return b.String()
}

func (r *Renderer) render(p page) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func items(reports []domain.ScoredReport) []item {
	out := make([]item, 0, len(reports))
	for _, s := range reports {
		rep := s.Report
		quarter := rep.QuarterLabel()
		if len(quarter) == 6 {
			quarter = quarter[:4] + "年" + quarter[4:]
		}
		out = append(out, item{
			Code:         rep.Code,
			Name:         rep.Name,
			Quarter:      quarter,
			Disclosed:    rep.DisclosureKey(),
			ForecastType: rep.ForecastType,
			ChangeRange:  rep.ChangeRange(),
			Reason:       rep.ChangeReason,
			Comment:      s.Comment,
			URL:          AnnouncementURL(rep.Code),
		})
	}
	return out
}
