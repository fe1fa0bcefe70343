/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package compiler turns table mappings and queries into T-SQL commands.
//
// Identifiers are bracket-quoted, table aliases are positional (t000) and
// parameter names are positional (@p000) in the order parameters are
// appended. Command execution binds values by that order and name, so the
// numbering is part of the output contract.
package compiler
