package matcher

import (
	"context"
	"fmt"

	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
)

const profileQuery = `SELECT id, profile_name, job_title, professional_summary, key_skill, experience,
certificate, charge_rate, education, projects, employee_type, availability, location
FROM add_profile ORDER BY id`

// LoadProfiles reads every candidate profile from the add_profile table.
func LoadProfiles(ctx context.Context, db sqldb.Database) ([]reader.Profile, error) {
	res, err := db.Query(ctx, profileQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	profiles := make([]reader.Profile, 0, len(res.Rows))
	for _, row := range res.Rows {
		fields := make(map[string]string, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(row) && row[i] != nil {
				fields[col] = sqldb.FormatValue(row[i])
			}
		}
		profiles = append(profiles, reader.ProfileFromFields(fields))
	}
	return profiles, nil
}
