package limiter

// ─────────────────────────────────────────────
// Lua Scripts for Atomic Redis Operations
// ─────────────────────────────────────────────

// LuaFixedWindow counts one hit against a fixed window.
//
// KEYS[1] = ratelimit:{scope}:{id}   (string counter)
// ARGV[1] = window (milliseconds)
//
// Returns:
//
//	[1] hits in the current window, including this one
//	[2] milliseconds until the window resets
const LuaFixedWindow = `
local key    = KEYS[1]
local window = tonumber(ARGV[1])

local hits = redis.call("INCR", key)

-- First hit opens the window. A counter that somehow lost its TTL
-- would block forever, so re-arm it too.
local ttl = redis.call("PTTL", key)
if hits == 1 or ttl < 0 then
    redis.call("PEXPIRE", key, window)
    ttl = window
end

return {hits, ttl}
`
