// Package docs holds the OpenAPI description served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/voting/grades": {
            "get": {
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "List grade levels and their scores",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.GradesResponse"}}
                }
            }
        },
        "/api/voting/sessions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "Create a voting session",
                "parameters": [
                    {"type": "string", "description": "Idempotency key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Session", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.CreateSessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/voting/sessions/public": {
            "get": {
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "List public voting sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SessionListResponse"}}
                }
            }
        },
        "/api/voting/sessions/{session_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "Get a voting session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "session_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SessionDetailResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/voting/sessions/{session_id}/anime": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "Add an anime to a session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "session_id", "in": "path", "required": true},
                    {"description": "Anime", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.AddAnimeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AddAnimeResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/voting/sessions/{session_id}/vote": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "Cast or replace a ballot",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "session_id", "in": "path", "required": true},
                    {"description": "Ballot", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CastVoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/voting/sessions/{session_id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["voting"],
                "summary": "Aggregate session results",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "session_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SessionStatsResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/search/anime": {
            "get": {
                "produces": ["application/json"],
                "tags": ["catalog"],
                "summary": "Search the anime catalog",
                "parameters": [
                    {"type": "string", "description": "Keyword", "name": "keyword", "in": "query", "required": true},
                    {"type": "integer", "description": "Result limit (1-50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AnimeSearchResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "http.CreateSessionRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "is_public": {"type": "boolean"},
                "allow_multiple_votes": {"type": "boolean"},
                "max_votes_per_user": {"type": "integer"}
            }
        },
        "http.SessionResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "master_id": {"type": "string"},
                "is_public": {"type": "boolean"},
                "allow_multiple_votes": {"type": "boolean"},
                "max_votes_per_user": {"type": "integer"},
                "bangumi_ids": {"type": "array", "items": {"type": "string"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "http.CreateSessionResponse": {
            "type": "object",
            "properties": {
                "session": {"$ref": "#/definitions/http.SessionResponse"},
                "replayed": {"type": "boolean"}
            }
        },
        "http.SessionDetailResponse": {
            "type": "object",
            "properties": {"session": {"$ref": "#/definitions/http.SessionResponse"}}
        },
        "http.SessionListResponse": {
            "type": "object",
            "properties": {
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/http.SessionResponse"}},
                "count": {"type": "integer"}
            }
        },
        "http.AddAnimeRequest": {
            "type": "object",
            "properties": {"bangumi_id": {"type": "string"}}
        },
        "http.AddAnimeResponse": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "bangumi_id": {"type": "string"},
                "bangumi_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.VoteEntryRequest": {
            "type": "object",
            "properties": {"anime_id": {"type": "string"}, "vote_level": {"type": "string"}}
        },
        "http.CastVoteRequest": {
            "type": "object",
            "properties": {
                "voted_anime": {"type": "array", "items": {"$ref": "#/definitions/http.VoteEntryRequest"}}
            }
        },
        "http.CastVoteResponse": {
            "type": "object",
            "properties": {
                "vote_id": {"type": "string"},
                "session_id": {"type": "string"},
                "voted_anime_count": {"type": "integer"},
                "replaced": {"type": "boolean"},
                "cast_at": {"type": "string"}
            }
        },
        "http.ItemStatsResponse": {
            "type": "object",
            "properties": {
                "anime_id": {"type": "string"},
                "total_votes": {"type": "integer"},
                "total_score": {"type": "integer"},
                "average_score": {"type": "number"},
                "vote_distribution": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "http.OverallStatsResponse": {
            "type": "object",
            "properties": {
                "total_votes": {"type": "integer"},
                "total_score": {"type": "integer"},
                "average_score": {"type": "number"},
                "vote_distribution": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "http.SessionStatsResponse": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "total_voters": {"type": "integer"},
                "overall": {"$ref": "#/definitions/http.OverallStatsResponse"},
                "anime_stats": {"type": "array", "items": {"$ref": "#/definitions/http.ItemStatsResponse"}}
            }
        },
        "http.AnimeSearchItem": {
            "type": "object",
            "properties": {
                "bangumi_id": {"type": "string"},
                "title": {"type": "string"},
                "title_cn": {"type": "string"},
                "image": {"type": "string"},
                "score": {"type": "number"}
            }
        },
        "http.AnimeSearchResponse": {
            "type": "object",
            "properties": {
                "keyword": {"type": "string"},
                "count": {"type": "integer"},
                "results": {"type": "array", "items": {"$ref": "#/definitions/http.AnimeSearchItem"}}
            }
        },
        "http.GradeResponse": {
            "type": "object",
            "properties": {"level": {"type": "string"}, "label": {"type": "string"}, "score": {"type": "integer"}}
        },
        "http.GradesResponse": {
            "type": "object",
            "properties": {
                "grades": {"type": "array", "items": {"$ref": "#/definitions/http.GradeResponse"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "animevote API",
	Description:      "Anime voting sessions, ballots and aggregated results.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
