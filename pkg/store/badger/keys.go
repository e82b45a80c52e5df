package badger

import (
	"strings"

	"github.com/google/uuid"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// different entity types into logical namespaces. This design:
//   - Prevents key collisions between entity types
//   - Enables efficient range scans (e.g., all links of an owner)
//   - Makes the database structure self-documenting
//
// Entities are identified by UUID v4 (users keep their identity-provider
// string ids). Secondary indexes hold only the target id so every mutation
// touches at most one entity value plus a handful of small index entries.
//
// Key Namespace Prefixes:
//
// Entity / Index          Prefix   Key Format                               Value
// ================================================================================
// User                    "u:"     u:<userID>                               User (JSON)
// Folder                  "d:"     d:<uuid>                                 Folder (JSON)
// Folder Sibling Names    "dn:"    dn:<ownerID>:<parentID|->:<lower name>   folderID (bytes)
// Folder Owner Index      "do:"    do:<ownerID>:<uuid>                      (empty)
// File                    "f:"     f:<uuid>                                 File (JSON)
// File Name Triple        "fn:"    fn:<ownerID>:<folderID|->:<name>         fileID (bytes)
// File Owner Index        "fo:"    fo:<ownerID>:<uuid>                      (empty)
// File Version            "v:"     v:<uuid>                                 FileVersion (JSON)
// Versions By File        "vf:"    vf:<fileID>:<versionID>                  (empty)
// File Share              "s:"     s:<uuid>                                 FileShare (JSON)
// Active File Share       "sa:"    sa:<fileID>:<userID>                     shareID (bytes)
// File Shares By User     "su:"    su:<userID>:<shareID>                    (empty)
// Folder Share            "t:"     t:<uuid>                                 FolderShare (JSON)
// Active Folder Share     "ta:"    ta:<folderID>:<userID>                   shareID (bytes)
// Folder Shares By User   "tu:"    tu:<userID>:<shareID>                    (empty)
// Shared Link             "l:"     l:<uuid>                                 SharedLink (JSON)
// Link Token Index        "lt:"    lt:<token>                               linkID (bytes)
// Links By Owner          "lo:"    lo:<ownerID>:<uuid>                      (empty)
//
// Index Invariants:
//
//  1. "fn:" entries exist only for non-deleted files. Soft delete removes
//     the entry, restore re-adds it. The entry existing IS the uniqueness
//     constraint on the (owner, folder, name) triple: inserts do a
//     txn.Get on the key before writing and fail with AlreadyExists when
//     present. Badger's transactional conflict detection closes the race
//     between the check and the write.
//
//  2. "sa:"/"ta:" entries exist only for the single non-revoked share per
//     (target, user) pair. Revocation deletes the index entry but keeps
//     the share row for audit history.
//
//  3. "lt:" entries exist for active and inactive links alike; the active
//     flag is checked after the point lookup.
//
// Trash scans (ListTrashed, ListTrashedBefore) iterate the full "f:"
// namespace. The purge job runs daily and trash is small relative to the
// store, so a range scan is acceptable there.

const (
	prefixUser = "u:"

	prefixFolder      = "d:"
	prefixFolderName  = "dn:"
	prefixFolderOwner = "do:"

	prefixFile      = "f:"
	prefixFileName  = "fn:"
	prefixFileOwner = "fo:"

	prefixVersion       = "v:"
	prefixVersionByFile = "vf:"

	prefixFileShare       = "s:"
	prefixFileShareActive = "sa:"
	prefixFileShareUser   = "su:"

	prefixFolderShare       = "t:"
	prefixFolderShareActive = "ta:"
	prefixFolderShareUser   = "tu:"

	prefixLink      = "l:"
	prefixLinkToken = "lt:"
	prefixLinkOwner = "lo:"
)

func userKey(id string) []byte {
	return []byte(prefixUser + id)
}

func folderKey(id uuid.UUID) []byte {
	return []byte(prefixFolder + id.String())
}

func folderNameKey(ownerID string, parentID *uuid.UUID, name string) []byte {
	return []byte(prefixFolderName + ownerID + ":" + uuidOrDash(parentID) + ":" + strings.ToLower(name))
}

func folderOwnerKey(ownerID string, id uuid.UUID) []byte {
	return []byte(prefixFolderOwner + ownerID + ":" + id.String())
}

func fileKey(id uuid.UUID) []byte {
	return []byte(prefixFile + id.String())
}

func fileNameKey(ownerID string, folderID *uuid.UUID, name string) []byte {
	return []byte(prefixFileName + ownerID + ":" + uuidOrDash(folderID) + ":" + name)
}

func fileOwnerKey(ownerID string, id uuid.UUID) []byte {
	return []byte(prefixFileOwner + ownerID + ":" + id.String())
}

func versionKey(id uuid.UUID) []byte {
	return []byte(prefixVersion + id.String())
}

func versionByFileKey(fileID, versionID uuid.UUID) []byte {
	return []byte(prefixVersionByFile + fileID.String() + ":" + versionID.String())
}

func fileShareKey(id uuid.UUID) []byte {
	return []byte(prefixFileShare + id.String())
}

func fileShareActiveKey(fileID uuid.UUID, userID string) []byte {
	return []byte(prefixFileShareActive + fileID.String() + ":" + userID)
}

func fileShareUserKey(userID string, shareID uuid.UUID) []byte {
	return []byte(prefixFileShareUser + userID + ":" + shareID.String())
}

func folderShareKey(id uuid.UUID) []byte {
	return []byte(prefixFolderShare + id.String())
}

func folderShareActiveKey(folderID uuid.UUID, userID string) []byte {
	return []byte(prefixFolderShareActive + folderID.String() + ":" + userID)
}

func folderShareUserKey(userID string, shareID uuid.UUID) []byte {
	return []byte(prefixFolderShareUser + userID + ":" + shareID.String())
}

func linkKey(id uuid.UUID) []byte {
	return []byte(prefixLink + id.String())
}

func linkTokenKey(token string) []byte {
	return []byte(prefixLinkToken + token)
}

func linkOwnerKey(ownerID string, id uuid.UUID) []byte {
	return []byte(prefixLinkOwner + ownerID + ":" + id.String())
}

func uuidOrDash(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}
