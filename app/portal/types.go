package portal

import (
	"strings"
)

// ImageOnlyMarker prefixes the content of posts that consist of a scanned
// announcement image and carry no readable body.
const ImageOnlyMarker = "[图片公告]"

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewsItem is the read model of one scraped article. The backend owns every
// field; view_count in particular is incremented server side on detail reads.
type NewsItem struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Summary     string       `json:"summary,omitempty"`
	SourceURL   string       `json:"source_url"`
	SourceName  string       `json:"source_name"`
	PublishedAt *Timestamp   `json:"published_at,omitempty"`
	Author      string       `json:"author,omitempty"`
	Images      []string     `json:"images"`
	Attachments []Attachment `json:"attachments"`
	Category    string       `json:"category,omitempty"`
	Tags        []string     `json:"tags"`
	IsPublished bool         `json:"is_published"`
	IsFeatured  bool         `json:"is_featured"`
	ViewCount   int          `json:"view_count"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   *Timestamp   `json:"updated_at,omitempty"`
}

func (n NewsItem) IsImageOnly() bool {
	return strings.HasPrefix(strings.TrimSpace(n.Content), ImageOnlyMarker)
}

// DisplaySummary hides summaries generated from image-only posts.
func (n NewsItem) DisplaySummary() string {
	if strings.Contains(n.Summary, ImageOnlyMarker) {
		return ""
	}
	return n.Summary
}

type NewsList struct {
	Total    int        `json:"total"`
	Items    []NewsItem `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// TotalPages is ceil(total/page_size); zero when either side is zero.
func (l NewsList) TotalPages() int {
	return TotalPages(l.Total, l.PageSize)
}

func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt Timestamp `json:"created_at"`
}

// Initial is the avatar letter shown for the user.
func (u User) Initial() string {
	for _, r := range u.Username {
		return strings.ToUpper(string(r))
	}
	return "?"
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type Semester struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	AcademicYear      string `json:"academic_year"`
	SemesterNumber    int    `json:"semester_number"`
	StartDate         Date   `json:"start_date"`
	EndDate           Date   `json:"end_date"`
	CalendarImageURL  string `json:"calendar_image_url,omitempty"`
	CalendarSourceURL string `json:"calendar_source_url,omitempty"`
	IsCurrent         bool   `json:"is_current"`
	IsActive          bool   `json:"is_active"`
	CurrentWeek       int    `json:"current_week"`
}

type SemesterWeek struct {
	ID         int    `json:"id"`
	SemesterID int    `json:"semester_id"`
	WeekNumber int    `json:"week_number"`
	StartDate  Date   `json:"start_date"`
	EndDate    Date   `json:"end_date"`
	Notes      string `json:"notes,omitempty"`
	IsHoliday  bool   `json:"is_holiday"`
	IsExamWeek bool   `json:"is_exam_week"`
	IsCurrent  bool   `json:"is_current"`
}

type CalendarSummary struct {
	CurrentSemester  *Semester      `json:"current_semester"`
	CurrentWeek      *SemesterWeek  `json:"current_week"`
	UpcomingHolidays []SemesterWeek `json:"upcoming_holidays"`
	UpcomingExams    []SemesterWeek `json:"upcoming_exams"`
}

type WeekInfo struct {
	WeekNumber int    `json:"week_number"`
	IsHoliday  bool   `json:"is_holiday"`
	IsExamWeek bool   `json:"is_exam_week"`
	Notes      string `json:"notes,omitempty"`
}

type CalendarDay struct {
	Date     Date      `json:"date"`
	Day      int       `json:"day"`
	Weekday  int       `json:"weekday"` // 0 is Monday
	IsToday  bool      `json:"is_today"`
	WeekInfo *WeekInfo `json:"week_info"`
}

// MonthlyCalendar is the day-by-day grid of one month annotated with the
// teaching week each day falls into.
type MonthlyCalendar struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	MonthName string        `json:"month_name"`
	Semester  *Semester     `json:"semester"`
	Days      []CalendarDay `json:"days"`
}
