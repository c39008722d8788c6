// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package migration manages the query history schema with golang-migrate.

SQL files for postgres, mysql and sqlite are embedded and applied through
the iofs source. Connections are opened with database.Open, so sqlite runs
on the pure-Go driver. CLI formats Migrator results for the
"finagent migrate" subcommand.

Servers that do not run migrations explicitly can enable
database.auto_migrate, which lets gorm create the same table.
*/
package migration
