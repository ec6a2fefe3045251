// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mockpersistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLMockProvider(t *testing.T) {
	m, err := NewSQLMockProvider()
	require.NoError(t, err)

	m.Mock.ExpectExec("DELETE FROM projector_checkpoints").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, m.P.DB().Exec("DELETE FROM projector_checkpoints").Error)
	assert.NoError(t, m.Mock.ExpectationsWereMet())
}
