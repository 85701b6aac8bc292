package postgres

import (
	"roadwatch/internal/domain"

	"github.com/jackc/pgx/v5"
)

const incidentColumns = `
	id,
	type,
	ST_Y(geo_point::geometry) AS lat,
	ST_X(geo_point::geometry) AS lng,
	address,
	description,
	photos,
	created_by,
	creation_date,
	lifetime,
	comment_count,
	users_liked,
	reporters`

const commentColumns = `id, incident_id, author_id, author_name, text, photos, created_at, system_comment`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	if err := row.Scan(
		&inc.ID,
		&inc.Type,
		&inc.Lat,
		&inc.Lng,
		&inc.Address,
		&inc.Description,
		&inc.Photos,
		&inc.CreatedBy,
		&inc.CreationDate,
		&inc.Lifetime,
		&inc.CommentCount,
		&inc.UsersLiked,
		&inc.Reporters,
	); err != nil {
		return nil, err
	}
	inc.CreationDate = inc.CreationDate.UTC()
	inc.Lifetime = inc.Lifetime.UTC()
	return &inc, nil
}

func scanIncidents(rows pgx.Rows) ([]*domain.Incident, error) {
	defer rows.Close()

	incidents := make([]*domain.Incident, 0, 8)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return incidents, nil
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(
		&c.ID,
		&c.IncidentID,
		&c.AuthorID,
		&c.AuthorName,
		&c.Text,
		&c.Photos,
		&c.Timestamp,
		&c.SystemComment,
	); err != nil {
		return nil, err
	}
	c.Timestamp = c.Timestamp.UTC()
	return &c, nil
}
