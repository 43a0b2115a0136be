package demo

import "triad-console/internal/attacks"

const problemMarkdown = `# The reliability triad

Edge gateways on a plant floor have to be **secure**, **available** and
**updatable** at the same time. An interpreted worker pool gives up one of the
three whenever something goes wrong:

- A malicious payload runs with the full capabilities of the worker process.
  The worker crashes and the pool waits for a respawn.
- A crashed leader blocks elections until it comes back.
- Every update ships a whole container image to every device.

A WASM sandbox instantiated three times for 2oo3 voting answers each point:

| Concern | Interpreted pool | WASM 2oo3 |
|---|---|---|
| Security | capabilities are ambient | capabilities must be imported |
| Availability | respawn before voting | outvote the faulty instance, rebuild in ms |
| Updates | ~50 MB image | ~50 KB module |

Use the **Demo** tab to attack both sides and the **Proof** tab to measure the
numbers on this machine.
`

const hardwareMarkdown = `# Sensor node

A BME280 temperature, humidity and pressure sensor sits behind a Modbus RTU
gateway. Readings travel as a function 0x03 response holding three registers:

| Register | Value | Scale |
|---|---|---|
| 0 | temperature (signed) | x100 |
| 1 | humidity | x100 |
| 2 | pressure | x10 |

The sandboxed driver is instantiated against this capability contract. Anything
under ` + "`attack-surface`" + ` is never provided by the host:

` + "```wit\n" + attacks.WITExcerpt + "```\n"
