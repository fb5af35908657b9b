package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// loadSQLite reads a database snapshot into memory. The connection is
// query-only and closed as soon as the snapshot is loaded.
func loadSQLite(path string) ([]Species, []Threat, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite catalog: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		return nil, nil, fmt.Errorf("failed to set query_only: %w", err)
	}

	species, err := scanSpecies(db)
	if err != nil {
		return nil, nil, err
	}

	links, err := scanThreatLinks(db)
	if err != nil {
		return nil, nil, err
	}
	for i := range species {
		if l := links[species[i].ID]; l != nil {
			species[i].Threats = l
		}
	}

	threats, err := scanThreats(db)
	if err != nil {
		return nil, nil, err
	}

	return species, threats, nil
}

func scanSpecies(db *sql.DB) ([]Species, error) {
	rows, err := db.Query(`
		SELECT id, source, source_record_id, detail_url, common_name,
		       scientific_name, status, image_url, min_depth_m, max_depth_m,
		       depth_notes, depth_source
		FROM species
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query species: %w", err)
	}
	defer rows.Close()

	var species []Species
	for rows.Next() {
		var sp Species
		var detailURL, depthNotes, depthSource sql.NullString
		var minDepth, maxDepth sql.NullFloat64

		err := rows.Scan(
			&sp.ID,
			&sp.Source,
			&sp.SourceRecordID,
			&detailURL,
			&sp.CommonName,
			&sp.ScientificName,
			&sp.Status,
			&sp.ImageURL,
			&minDepth,
			&maxDepth,
			&depthNotes,
			&depthSource,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan species: %w", err)
		}

		sp.DetailURL = detailURL.String
		sp.DepthNotes = depthNotes.String
		sp.DepthSource = depthSource.String
		if minDepth.Valid {
			v := minDepth.Float64
			sp.MinDepthM = &v
		}
		if maxDepth.Valid {
			v := maxDepth.Float64
			sp.MaxDepthM = &v
		}
		sp.Threats = []string{}
		species = append(species, sp)
	}
	return species, rows.Err()
}

func scanThreatLinks(db *sql.DB) (map[int64][]string, error) {
	rows, err := db.Query(`
		SELECT st.species_id, t.name
		FROM species_threat st
		JOIN threat t ON t.id = st.threat_id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query species threats: %w", err)
	}
	defer rows.Close()

	links := make(map[int64][]string)
	for rows.Next() {
		var speciesID int64
		var name string
		if err := rows.Scan(&speciesID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan species threat: %w", err)
		}
		links[speciesID] = append(links[speciesID], name)
	}
	return links, rows.Err()
}

func scanThreats(db *sql.DB) ([]Threat, error) {
	rows, err := db.Query("SELECT id, name FROM threat ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query threats: %w", err)
	}
	defer rows.Close()

	var threats []Threat
	for rows.Next() {
		var t Threat
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan threat: %w", err)
		}
		threats = append(threats, t)
	}
	return threats, rows.Err()
}
