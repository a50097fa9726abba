package database

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Initializer 数据库初始化器: AutoMigrate + 嵌入的 DDL 脚本
type Initializer struct {
	db      *gorm.DB
	fsys    fs.FS
	root    string
	prepare func(*gorm.DB) error
	models  []interface{}
}

// InitOptions 初始化选项
type InitOptions struct {
	// 嵌入文件系统, 为空时使用 SchemaSQL
	FS   fs.FS
	Root string

	// AutoMigrate 之前执行, 用于注册自定义关联表
	Prepare func(*gorm.DB) error

	Models []interface{}
}

// NewInitializer 创建初始化器
func NewInitializer(db *gorm.DB, opts InitOptions) *Initializer {
	if opts.FS == nil {
		opts.FS = SchemaSQL
		opts.Root = "schema"
	}
	return &Initializer{
		db:      db,
		fsys:    opts.FS,
		root:    opts.Root,
		prepare: opts.Prepare,
		models:  opts.Models,
	}
}

// Initialize 执行初始化
// SQL 脚本只在 PostgreSQL 上执行, 其他方言跳过
func (i *Initializer) Initialize(ctx context.Context) error {
	log.Println("[DB] 开始数据库初始化...")
	start := time.Now()

	db := i.db.WithContext(ctx)

	if i.prepare != nil {
		if err := i.prepare(db); err != nil {
			return fmt.Errorf("注册关联表失败: %w", err)
		}
	}

	if len(i.models) > 0 {
		log.Printf("[DB] 1/2 AutoMigrate %d 个表...", len(i.models))
		if err := db.AutoMigrate(i.models...); err != nil {
			return fmt.Errorf("AutoMigrate 失败: %w", err)
		}
	}

	if !IsPostgres(i.db) {
		log.Printf("[DB] 2/2 方言 %s 跳过 SQL 脚本", i.db.Dialector.Name())
	} else {
		files, err := i.scripts()
		if err != nil {
			return err
		}
		log.Printf("[DB] 2/2 执行 %d 个 SQL 脚本...", len(files))
		for _, f := range files {
			if err := i.exec(ctx, f); err != nil {
				return err
			}
		}
	}

	log.Printf("[DB] 初始化完成，耗时 %v", time.Since(start))
	return nil
}

// scripts 按文件名排序的脚本列表
func (i *Initializer) scripts() ([]string, error) {
	entries, err := fs.ReadDir(i.fsys, i.root)
	if err != nil {
		return nil, fmt.Errorf("读取 SQL 目录失败: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, path.Join(i.root, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (i *Initializer) exec(ctx context.Context, file string) error {
	content, err := fs.ReadFile(i.fsys, file)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", file, err)
	}
	for _, stmt := range SplitStatements(string(content)) {
		if err := i.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("执行 %s 失败: %w", file, err)
		}
	}
	return nil
}

// SplitStatements 按分号拆分语句, 去掉 -- 注释行
func SplitStatements(sql string) []string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
