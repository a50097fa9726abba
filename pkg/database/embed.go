package database

import "embed"

// SchemaSQL 嵌入 AutoMigrate 之外的 PostgreSQL 专用 DDL (扩展、检索索引)
//
//go:embed schema/*.sql
var SchemaSQL embed.FS
