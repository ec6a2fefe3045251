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

package msgs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

const pixelWorldPrefix = "PW01"

var registerOnce sync.Once

var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registerOnce.Do(func() {
		i18n.RegisterPrefix(pixelWorldPrefix, "PixelWorld Projector")
	})
	if !strings.HasPrefix(key, pixelWorldPrefix) {
		panic(fmt.Errorf("must have prefix '%s': %s", pixelWorldPrefix, key))
	}
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Generic PW0100XX
	MsgContextCanceled      = ffe("PW010000", "Context canceled")
	MsgConfigFileMissing    = ffe("PW010001", "Config file not found at location: %s")
	MsgConfigFileReadError  = ffe("PW010002", "Failed to read config file %s with error: %s")
	MsgConfigFileParseError = ffe("PW010003", "Failed to parse config: %s")
	MsgConfigInvalid        = ffe("PW010004", "Invalid configuration value '%s': %s")
	MsgConfigEnvParseError  = ffe("PW010005", "Failed to parse environment overrides")

	// Codec PW0101XX
	MsgMalformedAddress     = ffe("PW010100", "Malformed pixel address '%s'")
	MsgMalformedColor       = ffe("PW010101", "Malformed pixel color '%s'")
	MsgAddressOutOfBounds   = ffe("PW010102", "Pixel address %s is outside the %dx%d canvas")
	MsgMissingBatchEntry    = ffe("PW010103", "Batch entry %d is missing its %s")
	MsgInvalidCanvasDefault = ffe("PW010104", "Invalid canvas default color '%s'")

	// Raster PW0102XX
	MsgStoreUnavailable        = ffe("PW010200", "Raster store unavailable at %s")
	MsgRasterDecodeFailed      = ffe("PW010201", "Failed to decode raster artifact %s")
	MsgRasterDimensionMismatch = ffe("PW010202", "Raster artifact %s is %dx%d but the canvas is %dx%d")
	MsgRasterUnknownFormat     = ffe("PW010203", "Unknown raster format '%s'")
	MsgRasterEncodeFailed      = ffe("PW010204", "Failed to encode raster as %s")
	MsgRasterDigestMismatch    = ffe("PW010205", "Raster artifact %s has digest %s but checkpoint %s was taken against %s")

	// Checkpoint PW0103XX
	MsgCheckpointReadFailed  = ffe("PW010300", "Failed to read checkpoint for stream '%s'")
	MsgCheckpointWriteFailed = ffe("PW010301", "Checkpoint store unavailable writing stream '%s' position %s")
	MsgCheckpointRegression  = ffe("PW010302", "Checkpoint for stream '%s' cannot move backwards from %s to %s")

	// Persistence PW0104XX
	MsgPersistenceInvalidType         = ffe("PW010400", "Invalid persistence type: %s")
	MsgPersistenceMissingDSN          = ffe("PW010401", "Missing database connection Data Source Name (DSN) config")
	MsgPersistenceInitFailed          = ffe("PW010402", "Database init failed")
	MsgPersistenceMigrationFailed     = ffe("PW010403", "Database migration failed")
	MsgPersistenceMissingMigrationDir = ffe("PW010404", "Missing database migration directory for autoMigrate")
	MsgPersistenceTransactionFailed   = ffe("PW010405", "Error in database transaction: %v")

	// Subscription PW0105XX
	MsgSubscriptionFailed          = ffe("PW010500", "Subscription failed: %s")
	MsgSubscriptionReconnectFailed = ffe("PW010501", "Subscription reconnect attempts exhausted after %d attempts")
	MsgSubscriptionError           = ffe("PW010502", "Error received on subscription %s: %s")
	MsgSubscriptionBadLog          = ffe("PW010503", "Unable to decode log in block %d index %d")
	MsgSubscriptionRemovedLog      = ffe("PW010504", "Log in block %d index %d was removed by a chain reorganization")
	MsgSubscriptionNotStartable    = ffe("PW010505", "Subscription cannot start from state %s")
	MsgSubscriptionStopped         = ffe("PW010506", "Subscription stopped")
	MsgSubscriptionBadEventABI     = ffe("PW010507", "Invalid event ABI: %s")
	MsgSubscriptionMissingContract = ffe("PW010508", "Contract address must be configured")

	// RPC client PW0106XX
	MsgRPCClientInvalidURL      = ffe("PW010600", "Invalid websocket URL: %s")
	MsgRPCClientConnectFailed   = ffe("PW010601", "Websocket connection to %s failed")
	MsgRPCClientClosed          = ffe("PW010602", "Websocket connection closed")
	MsgRPCClientRequestFailed   = ffe("PW010603", "JSON-RPC request '%s' failed: %s")
	MsgRPCClientResultParseFail = ffe("PW010604", "Failed to parse result of JSON-RPC request '%s'")
	MsgRPCClientSendFailed      = ffe("PW010605", "Failed to send JSON-RPC request '%s'")

	// Publisher PW0107XX
	MsgPublishUnavailable   = ffe("PW010700", "Publish to %s failed")
	MsgPublishBadResponse   = ffe("PW010701", "Publish to %s returned [%d]: %s")
	MsgPublishFileDisabled  = ffe("PW010702", "The file publisher must be enabled, the raster is restored from %s on startup")
	MsgPublishHistoryFailed = ffe("PW010703", "Failed to store history copy %s")
	MsgRESTClientInvalidURL = ffe("PW010704", "Invalid HTTP URL: %s")

	// Projector PW0108XX
	MsgProjectorRestartsExhausted = ffe("PW010800", "Subscription failed %d times without progress")
	MsgProjectorBatchFailed       = ffe("PW010801", "Batch at %s failed")

	// HTTP server PW0109XX
	MsgHTTPServerMissingPort     = ffe("PW010900", "HTTP server port must be specified for '%s'")
	MsgHTTPServerStartFailed     = ffe("PW010901", "Failed to start server on '%s'")
	MsgHTTPServerNoArtifact      = ffe("PW010902", "No artifact has been published yet", 404)
	MsgHTTPServerArtifactFailure = ffe("PW010903", "Failed to read artifact", 500)
)
