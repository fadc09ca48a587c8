package repository

// Both backends share one schema; TEXT keys keep vendor ids verbatim.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS plu_items (
		catalog_id TEXT PRIMARY KEY,
		source_item_id TEXT NOT NULL DEFAULT '',
		plu_number TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		image_src TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS cache_meta (
		meta_key TEXT PRIMARY KEY,
		meta_value TEXT NOT NULL
	)`,
}

const metaPopulatedAt = "populated_at"

const (
	insertItemSQL = `INSERT INTO plu_items (catalog_id, source_item_id, plu_number, title, image_src)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (catalog_id) DO NOTHING`
	insertMetaSQL = `INSERT INTO cache_meta (meta_key, meta_value) VALUES (?, ?)
		ON CONFLICT (meta_key) DO NOTHING`
	selectMetaSQL   = `SELECT meta_value FROM cache_meta WHERE meta_key = ?`
	selectAnswerSQL = `SELECT plu_number FROM plu_items WHERE catalog_id = ?`
	selectItemSQL   = `SELECT catalog_id, source_item_id, plu_number, title, image_src FROM plu_items WHERE catalog_id = ?`
	listItemsSQL    = `SELECT catalog_id, source_item_id, plu_number, title, image_src FROM plu_items ORDER BY LENGTH(catalog_id), catalog_id LIMIT ?`
	countItemsSQL   = `SELECT COUNT(*) FROM plu_items`
)
