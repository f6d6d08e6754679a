package reader

import (
	"fmt"
	"regexp"
	"strings"
)

// NotSpecified is rendered for empty optional profile fields.
const NotSpecified = "Not specified"

// Project is one entry of a candidate's project history.
type Project struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Profile is a candidate profile as stored in add_profile.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	JobTitle     string    `json:"job_title"`
	Experience   string    `json:"experience"`
	Department   string    `json:"department"`
	Summary      string    `json:"professional_summary"`
	Skills       []string  `json:"skills"`
	Education    string    `json:"education"`
	Certificate  string    `json:"certificate"`
	ChargeRate   string    `json:"charge_rate"`
	Availability string    `json:"availability"`
	Location     string    `json:"location"`
	EmployeeType string    `json:"employee_type"`
	Projects     []Project `json:"projects"`
}

var projectRegex = regexp.MustCompile(`(?s)^\s*:\s*(.*?)\s*\|\s*projects\s*:\s*(.*)$`)

// ParseProjects decodes "projects_title : X | projects:Y" entries. Several
// entries may follow each other in one field. Text that does not follow the
// format is kept as a single untitled project.
func ParseProjects(raw string) []Project {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return nil
	}

	parts := strings.Split(raw, "projects_title")
	if len(parts) == 1 {
		return []Project{{Title: "Project", Description: raw}}
	}

	var projects []Project
	for _, part := range parts[1:] {
		m := projectRegex.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		projects = append(projects, Project{
			Title:       strings.TrimSpace(m[1]),
			Description: strings.Trim(strings.TrimSpace(m[2]), `"',;[]{} `),
		})
	}
	if len(projects) == 0 {
		return []Project{{Title: "Project", Description: raw}}
	}
	return projects
}

// SplitSkills splits a comma separated skill list.
func SplitSkills(raw string) []string {
	var skills []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

// ProfileFromFields builds a Profile from column name/value pairs, as read
// from a CSV export or the add_profile table.
func ProfileFromFields(fields map[string]string) Profile {
	get := func(key string) string {
		v := strings.TrimSpace(fields[key])
		if strings.EqualFold(v, "null") || strings.EqualFold(v, "nan") {
			return ""
		}
		return v
	}

	return Profile{
		ID:           get("id"),
		Name:         get("profile_name"),
		JobTitle:     get("job_title"),
		Experience:   get("experience"),
		Department:   get("department"),
		Summary:      get("professional_summary"),
		Skills:       SplitSkills(get("key_skill")),
		Education:    get("education"),
		Certificate:  get("certificate"),
		ChargeRate:   get("charge_rate"),
		Availability: get("availability"),
		Location:     get("location"),
		EmployeeType: get("employee_type"),
		Projects:     ParseProjects(get("projects")),
	}
}

// BuildProfileText renders the text that is embedded and shown to the model.
func BuildProfileText(p Profile) string {
	orDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CANDIDATE ID: %s\n", p.ID)
	fmt.Fprintf(&b, "NAME: %s\n", p.Name)
	fmt.Fprintf(&b, "JOB TITLE: %s\n", p.JobTitle)
	fmt.Fprintf(&b, "EXPERIENCE: %s\n", p.Experience)
	fmt.Fprintf(&b, "DEPARTMENT: %s\n", p.Department)
	fmt.Fprintf(&b, "PROFESSIONAL SUMMARY: %s\n", p.Summary)
	fmt.Fprintf(&b, "SKILLS: %s\n", strings.Join(p.Skills, ", "))
	fmt.Fprintf(&b, "EDUCATION: %s\n", p.Education)
	fmt.Fprintf(&b, "CERTIFICATION: %s\n", orDefault(p.Certificate, "None"))
	fmt.Fprintf(&b, "CHARGE RATE: %s\n", orDefault(p.ChargeRate, NotSpecified))
	fmt.Fprintf(&b, "AVAILABILITY: %s\n", orDefault(p.Availability, NotSpecified))
	fmt.Fprintf(&b, "LOCATION: %s\n", orDefault(p.Location, NotSpecified))
	if p.EmployeeType != "" {
		fmt.Fprintf(&b, "EMPLOYEE TYPE: %s\n", p.EmployeeType)
	}

	if len(p.Projects) > 0 {
		b.WriteString("\nPROJECTS:\n")
		for _, pr := range p.Projects {
			fmt.Fprintf(&b, "- %s: %s\n", pr.Title, pr.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
