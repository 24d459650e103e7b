package cpu

// opcodeTable is built once at package init; each slot dispatches a single
// fetched opcode byte to its handler, which returns the instruction's tick
// cost.
var opcodeTable [256]func(*CPU) int

func init() {
	for i := range opcodeTable {
		opcodeTable[i] = illegal
	}

	// 01DDDSSS: MOV D,S. 0x76 (HLT's own slot, D=S=M) is overwritten below.
	for dst := 0; dst < 8; dst++ {
		for src := 0; src < 8; src++ {
			opcode := 0x40 | dst<<3 | src
			d, s := dst, src
			opcodeTable[opcode] = func(c *CPU) int {
				v := c.getReg(s)
				c.setReg(d, v)
				if d == regM || s == regM {
					return 7
				}
				return 5
			}
		}
	}

	// 00DDD1SS family: INR (100), DCR (101), MVI (110).
	for r := 0; r < 8; r++ {
		reg := r
		opcodeTable[0x04|r<<3] = func(c *CPU) int {
			result := c.addWithCarry(c.getReg(reg), 0x01, 0, false)
			c.setReg(reg, result)
			if reg == regM {
				return 10
			}
			return 5
		}
		opcodeTable[0x05|r<<3] = func(c *CPU) int {
			result := c.addWithCarry(c.getReg(reg), 0xFF, 0, false)
			c.setReg(reg, result)
			if reg == regM {
				return 10
			}
			return 5
		}
		opcodeTable[0x06|r<<3] = func(c *CPU) int {
			imm := c.fetchByte()
			c.setReg(reg, imm)
			if reg == regM {
				return 10
			}
			return 7
		}
	}

	// 10OOOSSS: ADD/ADC/SUB/SBB/ANA/XRA/ORA/CMP, S = source register.
	for src := 0; src < 8; src++ {
		s := src
		regTicks := func() int {
			if s == regM {
				return 7
			}
			return 4
		}
		opcodeTable[0x80|s] = func(c *CPU) int { c.add(c.getReg(s), 0); return regTicks() }
		opcodeTable[0x88|s] = func(c *CPU) int { c.add(c.getReg(s), boolToU8(c.getFlag(carryFlag))); return regTicks() }
		opcodeTable[0x90|s] = func(c *CPU) int { c.sub(c.getReg(s), 0); return regTicks() }
		opcodeTable[0x98|s] = func(c *CPU) int { c.sub(c.getReg(s), boolToU8(c.getFlag(carryFlag))); return regTicks() }
		opcodeTable[0xA0|s] = func(c *CPU) int { c.ana(c.getReg(s)); return regTicks() }
		opcodeTable[0xA8|s] = func(c *CPU) int { c.xra(c.getReg(s)); return regTicks() }
		opcodeTable[0xB0|s] = func(c *CPU) int { c.ora(c.getReg(s)); return regTicks() }
		opcodeTable[0xB8|s] = func(c *CPU) int { c.cmp(c.getReg(s)); return regTicks() }
	}

	// 00RP0001 LXI, 00RP0011 INX, 00RP1011 DCX, 00RP1001 DAD.
	for rp := 0; rp < 4; rp++ {
		p := rp
		opcodeTable[0x01|p<<4] = func(c *CPU) int {
			c.setRp(p, c.fetchWord())
			return 10
		}
		opcodeTable[0x03|p<<4] = func(c *CPU) int {
			c.setRp(p, c.getRp(p)+1)
			return 5
		}
		opcodeTable[0x0B|p<<4] = func(c *CPU) int {
			c.setRp(p, c.getRp(p)-1)
			return 5
		}
		opcodeTable[0x09|p<<4] = func(c *CPU) int {
			sum := uint32(c.hl()) + uint32(c.getRp(p))
			c.setHl(uint16(sum))
			c.setFlag(carryFlag, sum > 0xFFFF)
			return 10
		}
	}

	// 11RP0101 PUSH, 11RP0001 POP; rp==3 selects PSW.
	for rp := 0; rp < 4; rp++ {
		p := rp
		opcodeTable[0xC1|p<<4] = func(c *CPU) int {
			c.setRpPush(p, c.pop())
			return 10
		}
		opcodeTable[0xC5|p<<4] = func(c *CPU) int {
			c.push(c.getRpPush(p))
			return 11
		}
	}

	// 11CCC010 Jcc, 11CCC100 Ccc, 11CCC000 Rcc.
	for cond := 0; cond < 8; cond++ {
		cc := cond
		opcodeTable[0xC2|cc<<3] = func(c *CPU) int {
			addr := c.fetchWord()
			if c.testCondition(cc) {
				c.pc = addr
			}
			return 10
		}
		opcodeTable[0xC4|cc<<3] = func(c *CPU) int {
			addr := c.fetchWord()
			if c.testCondition(cc) {
				c.push(c.pc)
				c.pc = addr
				return 17
			}
			return 11
		}
		opcodeTable[0xC0|cc<<3] = func(c *CPU) int {
			if c.testCondition(cc) {
				c.pc = c.pop()
				return 11
			}
			return 5
		}
	}

	// RST n at 11NNN111.
	for n := uint16(0); n < 8; n++ {
		nn := n
		opcodeTable[0xC7|int(nn)<<3] = func(c *CPU) int { return c.rst(nn) }
	}

	for _, illegalOp := range []int{0x08, 0x10, 0x18, 0x20, 0x28, 0x30, 0x38, 0xCB, 0xD9, 0xDD, 0xED, 0xFD} {
		opcodeTable[illegalOp] = nop
	}

	opcodeTable[0x00] = nop
	opcodeTable[0x76] = hlt

	opcodeTable[0x07] = rlc
	opcodeTable[0x0F] = rrc
	opcodeTable[0x17] = ral
	opcodeTable[0x1F] = rar
	opcodeTable[0x27] = daa
	opcodeTable[0x2F] = cma
	opcodeTable[0x37] = stc
	opcodeTable[0x3F] = cmc

	opcodeTable[0x02] = stax(rpBC)
	opcodeTable[0x12] = stax(rpDE)
	opcodeTable[0x0A] = ldax(rpBC)
	opcodeTable[0x1A] = ldax(rpDE)

	opcodeTable[0x22] = shld
	opcodeTable[0x2A] = lhld
	opcodeTable[0x32] = sta
	opcodeTable[0x3A] = lda

	opcodeTable[0xC3] = jmp
	opcodeTable[0xCD] = call
	opcodeTable[0xC9] = ret

	opcodeTable[0xC6] = func(c *CPU) int { return c.add(c.fetchByte(), 0) + 3 }
	opcodeTable[0xCE] = func(c *CPU) int { return c.add(c.fetchByte(), boolToU8(c.getFlag(carryFlag))) + 3 }
	opcodeTable[0xD6] = func(c *CPU) int { return c.sub(c.fetchByte(), 0) + 3 }
	opcodeTable[0xDE] = func(c *CPU) int { return c.sub(c.fetchByte(), boolToU8(c.getFlag(carryFlag))) + 3 }
	opcodeTable[0xE6] = func(c *CPU) int { return c.ana(c.fetchByte()) + 3 }
	opcodeTable[0xEE] = func(c *CPU) int { return c.xra(c.fetchByte()) + 3 }
	opcodeTable[0xF6] = func(c *CPU) int { return c.ora(c.fetchByte()) + 3 }
	opcodeTable[0xFE] = func(c *CPU) int { return c.cmp(c.fetchByte()) + 3 }

	opcodeTable[0xE3] = xthl
	opcodeTable[0xE9] = pchl
	opcodeTable[0xEB] = xchg
	opcodeTable[0xF3] = di
	opcodeTable[0xF9] = sphl
	opcodeTable[0xFB] = ei

	opcodeTable[0xD3] = out
	opcodeTable[0xDB] = in
}

func illegal(c *CPU) int { return nop(c) }

func nop(c *CPU) int { return 4 }

func hlt(c *CPU) int {
	c.halted = true
	return 7
}

// add performs ADD/ADC/ADI/ACI: A <- A + operand + carryIn, full flags.
func (c *CPU) add(operand, carryIn uint8) int {
	c.a = c.addWithCarry(c.a, operand, carryIn, true)
	return 4
}

// sub performs SUB/SBB/SUI/SBI: A <- A - operand - borrowIn, full flags.
func (c *CPU) sub(operand, borrowIn uint8) int {
	c.a = c.subWithBorrow(c.a, operand, borrowIn)
	return 4
}

// ana performs ANA/ANI. AC is set from the OR of the operands rather than
// the usual add-carry derivation, an 8080 quirk.
func (c *CPU) ana(operand uint8) int {
	ac := (c.a|operand)&0x08 != 0
	c.a &= operand
	c.setFlag(auxCarryFlag, ac)
	c.setFlag(carryFlag, false)
	c.setZSP(c.a)
	return 4
}

func (c *CPU) xra(operand uint8) int {
	c.a ^= operand
	c.setFlag(auxCarryFlag, false)
	c.setFlag(carryFlag, false)
	c.setZSP(c.a)
	return 4
}

func (c *CPU) ora(operand uint8) int {
	c.a |= operand
	c.setFlag(auxCarryFlag, false)
	c.setFlag(carryFlag, false)
	c.setZSP(c.a)
	return 4
}

// cmp performs CMP/CPI: flags only, result discarded.
func (c *CPU) cmp(operand uint8) int {
	c.subWithBorrow(c.a, operand, 0)
	return 4
}

func rlc(c *CPU) int {
	carry := c.a&0x80 != 0
	c.a = c.a<<1 | boolToU8(carry)
	c.setFlag(carryFlag, carry)
	return 4
}

func rrc(c *CPU) int {
	carry := c.a&0x01 != 0
	c.a = c.a>>1 | boolToU8(carry)<<7
	c.setFlag(carryFlag, carry)
	return 4
}

func ral(c *CPU) int {
	prevCarry := boolToU8(c.getFlag(carryFlag))
	c.setFlag(carryFlag, c.a&0x80 != 0)
	c.a = c.a<<1 | prevCarry
	return 4
}

func rar(c *CPU) int {
	prevCarry := boolToU8(c.getFlag(carryFlag))
	c.setFlag(carryFlag, c.a&0x01 != 0)
	c.a = c.a>>1 | prevCarry<<7
	return 4
}

// daa applies the decimal adjust algorithm: low nibble corrected first
// (updating AC via the same add-carry derivation), then high nibble,
// folding in any carry produced by either step.
func daa(c *CPU) int {
	correction := uint8(0)
	carry := c.getFlag(carryFlag)

	lowNibble := c.a & 0x0F
	if lowNibble > 9 || c.getFlag(auxCarryFlag) {
		correction |= 0x06
	}

	highNibble := c.a >> 4
	if highNibble > 9 || carry || (highNibble >= 9 && lowNibble > 9) {
		correction |= 0x60
		carry = true
	}

	c.a = c.addWithCarry(c.a, correction, 0, false)
	c.setFlag(carryFlag, carry)
	return 4
}

func cma(c *CPU) int {
	c.a = ^c.a
	return 4
}

func stc(c *CPU) int {
	c.setFlag(carryFlag, true)
	return 4
}

func cmc(c *CPU) int {
	c.setFlag(carryFlag, !c.getFlag(carryFlag))
	return 4
}

func stax(rp int) func(*CPU) int {
	return func(c *CPU) int {
		c.mem.Write(c.getRp(rp), c.a, c.io)
		return 7
	}
}

func ldax(rp int) func(*CPU) int {
	return func(c *CPU) int {
		c.a = c.mem.Read(c.getRp(rp), c.io)
		return 7
	}
}

func shld(c *CPU) int {
	addr := c.fetchWord()
	c.mem.Write(addr, c.l, c.io)
	c.mem.Write(addr+1, c.h, c.io)
	return 16
}

func lhld(c *CPU) int {
	addr := c.fetchWord()
	c.l = c.mem.Read(addr, c.io)
	c.h = c.mem.Read(addr+1, c.io)
	return 16
}

func sta(c *CPU) int {
	addr := c.fetchWord()
	c.mem.Write(addr, c.a, c.io)
	return 13
}

func lda(c *CPU) int {
	addr := c.fetchWord()
	c.a = c.mem.Read(addr, c.io)
	return 13
}

func jmp(c *CPU) int {
	c.pc = c.fetchWord()
	return 10
}

func call(c *CPU) int {
	addr := c.fetchWord()
	c.push(c.pc)
	c.pc = addr
	return 17
}

func ret(c *CPU) int {
	c.pc = c.pop()
	return 10
}

// rst pushes the return address and jumps to n*8, shared by the RST
// instruction and by interrupt acceptance.
func (c *CPU) rst(n uint16) int {
	c.push(c.pc)
	c.pc = n * 8
	return 11
}

func xthl(c *CPU) int {
	lo := c.mem.Read(c.sp, c.io)
	hi := c.mem.Read(c.sp+1, c.io)
	c.mem.Write(c.sp, c.l, c.io)
	c.mem.Write(c.sp+1, c.h, c.io)
	c.l, c.h = lo, hi
	return 18
}

func pchl(c *CPU) int {
	c.pc = c.hl()
	return 5
}

func xchg(c *CPU) int {
	c.h, c.d = c.d, c.h
	c.l, c.e = c.e, c.l
	return 4
}

func di(c *CPU) int {
	c.iff = false
	return 4
}

func sphl(c *CPU) int {
	c.sp = c.hl()
	return 5
}

func ei(c *CPU) int {
	c.iff = true
	return 4
}

func out(c *CPU) int {
	port := c.fetchByte()
	c.io.Write(uint16(port), c.a, c.mem)
	return 10
}

func in(c *CPU) int {
	port := c.fetchByte()
	c.a = c.io.Read(uint16(port), c.mem)
	return 10
}
