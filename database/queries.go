package database

// SQL statements used by the journal.

const (
	InsertMutation = `
		INSERT INTO Mutations (mutation_id, operation, model, distinguishedName, new_distinguishedName, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	InsertAttributeChange = `
		INSERT INTO AttributeChanges (
			change_id,
			mutation_id,
			attribute_name,
			old_value,
			new_value,
			is_binary
		)
		VALUES ($1, $2, $3, $4, $5, $6)`

	SelectHistory = `
		SELECT m.mutation_id, m.operation, m.model, m.distinguishedName,
		       COALESCE(m.new_distinguishedName, ''), m.recorded_at,
		       c.attribute_name, c.old_value, c.new_value, COALESCE(c.is_binary, false)
		FROM Mutations m
		LEFT JOIN AttributeChanges c ON c.mutation_id = m.mutation_id
		WHERE m.distinguishedName = $1 OR m.new_distinguishedName = $1
		ORDER BY m.recorded_at, m.mutation_id, c.attribute_name`
)
